package gateway

import (
	"context"
	"net/http"

	"github.com/docet-dev/docet/internal/core/models"
)

// ChatRequest is one user turn sent to an assistant
type ChatRequest struct {
	Message     string
	AssistantID string
	SessionID   string // client-generated correlator, passed through untouched
}

// ChatReply is the assistant's answer. Sources is never nil.
type ChatReply struct {
	Message string
	Sources []models.SourceReference
}

// SendMessage posts a chat turn and waits for the reply. It is never retried:
// the backend may have already acted on the first attempt.
func (c *Client) SendMessage(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	ctx, cancel := withTimeout(ctx, c.timeouts.Send)
	defer cancel()

	body := wireChatRequest{
		Message:   req.Message,
		ChatbotID: req.AssistantID,
		SessionID: req.SessionID,
	}

	var resp wireChatResponse
	if err := c.do(ctx, "send_message", http.MethodPost, "/chat/message", body, &resp); err != nil {
		return nil, err
	}

	return &ChatReply{
		Message: resp.Message,
		Sources: references(resp.Sources),
	}, nil
}
