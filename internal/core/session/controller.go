// Package session owns one conversation: its transcript, the request in flight,
// and whether the target assistant exists.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/pkg/logger"
	"github.com/docet-dev/docet/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase is the controller's lifecycle state
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseReady      Phase = "ready"
	PhaseNotFound   Phase = "not_found"
	PhaseSending    Phase = "sending"
	PhaseIdleError  Phase = "idle-error" // validation could not reach the backend; sends still allowed
)

// Gateway is the subset of the backend client a session needs
type Gateway interface {
	AssistantExists(ctx context.Context, id string) (bool, error)
	SendMessage(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatReply, error)
}

// State is a point-in-time copy of a session
type State struct {
	AssistantID string
	Transcript  []models.Message
	Phase       Phase
	Draft       string
	LastError   string
}

// Options tunes a Controller. Zero values fall back to defaults.
type Options struct {
	WelcomeTemplate string // mustache; sees assistant_id and source_url
	SourceURL       string
	FallbackReply   string
	Logger          *logger.Logger
	Now             func() time.Time
}

// Controller mediates every state transition for one conversation.
// All methods are safe for concurrent use.
type Controller struct {
	gw       Gateway
	log      *logger.Logger
	now      func() time.Time
	seed     string
	fallback string

	mu     sync.Mutex
	state  State
	nextID int
}

// New creates a controller in the validating phase with a seeded transcript
func New(gw Gateway, assistantID string, opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fallback := opts.FallbackReply
	if fallback == "" {
		fallback = DefaultFallbackReply
	}

	c := &Controller{
		gw:       gw,
		now:      now,
		seed:     RenderWelcome(opts.WelcomeTemplate, assistantID, opts.SourceURL),
		fallback: fallback,
		log: logger.OrNop(opts.Logger).Named("session").With(
			zap.String("assistant_id", assistantID),
			zap.String("session", uuid.NewString()),
		),
		state: State{
			AssistantID: assistantID,
			Phase:       PhaseValidating,
		},
	}
	c.state.Transcript = []models.Message{c.newMessage(models.RoleAssistant, c.seed, nil)}
	return c
}

// newMessage must be called with mu held (or before the controller is shared)
func (c *Controller) newMessage(role models.Role, content string, sources []models.SourceReference) models.Message {
	c.nextID++
	return models.Message{
		ID:        c.nextID,
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
		Sources:   sources,
	}
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Transcript = append([]models.Message(nil), c.state.Transcript...)
	return s
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// SetDraft records uncommitted input
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Draft = text
}

// Validate checks that the assistant exists. It only acts in the validating
// phase; not_found is terminal and is never re-validated. A transport failure
// leaves the session usable in idle-error.
func (c *Controller) Validate(ctx context.Context) Phase {
	c.mu.Lock()
	if c.state.Phase != PhaseValidating {
		p := c.state.Phase
		c.mu.Unlock()
		return p
	}
	id := c.state.AssistantID
	c.mu.Unlock()

	exists, err := c.gw.AssistantExists(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		c.log.Warn("assistant validation failed, continuing", zap.Error(err))
		c.state.Phase = PhaseIdleError
		c.state.LastError = err.Error()
	case exists:
		c.state.Phase = PhaseReady
	default:
		c.log.Info("assistant not found")
		c.state.Phase = PhaseNotFound
	}
	return c.state.Phase
}

// canSend reports whether a new exchange may start. Must be called with mu held.
func (c *Controller) canSend() bool {
	return c.state.Phase == PhaseReady || c.state.Phase == PhaseIdleError
}

// Submit starts an exchange: the user message is appended, the draft cleared and
// the phase set to sending, all before any network call. It returns false, and
// changes nothing, for blank input or when the session cannot send (already
// sending, validating, or not_found). The returned Exchange must be Run.
func (c *Controller) Submit(text string) (*Exchange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(text) == "" || !c.canSend() {
		return nil, false
	}

	msg := c.newMessage(models.RoleUser, text, nil)
	c.state.Transcript = append(c.state.Transcript, msg)
	c.state.Draft = ""
	c.state.Phase = PhaseSending
	metrics.RecordSessionMessage(string(models.RoleUser), "sent")

	return &Exchange{
		c:          c,
		user:       msg,
		correlator: fmt.Sprintf("%s-%d", c.state.AssistantID, msg.Timestamp.UnixMilli()),
	}, true
}

// Send submits text and waits for the reply. ok is false when the send was a no-op.
func (c *Controller) Send(ctx context.Context, text string) (reply models.Message, ok bool) {
	ex, ok := c.Submit(text)
	if !ok {
		return models.Message{}, false
	}
	return ex.Run(ctx), true
}

// Clear resets the transcript to a fresh seed message. The phase is untouched.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Transcript = []models.Message{c.newMessage(models.RoleAssistant, c.seed, nil)}
}

// complete appends the reply for an exchange and returns to ready
func (c *Controller) complete(reply *gateway.ChatReply, err error) models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var msg models.Message
	if err != nil {
		c.log.Warn("send failed, using fallback reply", zap.Error(err))
		msg = c.newMessage(models.RoleAssistant, c.fallback, nil)
		c.state.LastError = err.Error()
		metrics.RecordSessionMessage(string(models.RoleAssistant), "fallback")
	} else {
		msg = c.newMessage(models.RoleAssistant, reply.Message, reply.Sources)
		c.state.LastError = ""
		metrics.RecordSessionMessage(string(models.RoleAssistant), "ok")
	}

	c.state.Transcript = append(c.state.Transcript, msg)
	c.state.Phase = PhaseReady
	return msg
}

// Exchange is one outstanding request/reply pair
type Exchange struct {
	c          *Controller
	user       models.Message
	correlator string
	once       sync.Once
	reply      models.Message
}

// UserMessage is the message appended when the exchange was submitted
func (e *Exchange) UserMessage() models.Message {
	return e.user
}

// Correlator is the session_id token sent with the request
func (e *Exchange) Correlator() string {
	return e.correlator
}

// Run issues the network call and appends the reply, or the fallback message on
// any failure. Calling Run more than once returns the first result.
func (e *Exchange) Run(ctx context.Context) models.Message {
	e.once.Do(func() {
		reply, err := e.c.gw.SendMessage(ctx, gateway.ChatRequest{
			Message:     e.user.Content,
			AssistantID: e.c.state.AssistantID,
			SessionID:   e.correlator,
		})
		if err == nil && reply == nil {
			err = fmt.Errorf("empty reply")
		}
		e.reply = e.c.complete(reply, err)
	})
	return e.reply
}
