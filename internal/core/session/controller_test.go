package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway answers from fields; SendMessage blocks while hold is non-nil
type fakeGateway struct {
	exists    bool
	existsErr error
	reply     *gateway.ChatReply
	sendErr   error
	hold      chan struct{}

	mu    sync.Mutex
	sends []gateway.ChatRequest
	calls atomic.Int32
}

func (f *fakeGateway) AssistantExists(ctx context.Context, id string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeGateway) SendMessage(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatReply, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sends = append(f.sends, req)
	f.mu.Unlock()
	if f.hold != nil {
		<-f.hold
	}
	return f.reply, f.sendErr
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func readyController(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()
	gw.exists = true
	c := New(gw, "petstore", Options{Now: fixedClock()})
	require.Equal(t, PhaseReady, c.Validate(context.Background()))
	return c
}

func TestNew_SeedsTranscript(t *testing.T) {
	c := New(&fakeGateway{}, "petstore", Options{WelcomeTemplate: "Welcome to {{assistant_id}}"})

	s := c.Snapshot()
	assert.Equal(t, PhaseValidating, s.Phase)
	require.Len(t, s.Transcript, 1)
	assert.Equal(t, models.RoleAssistant, s.Transcript[0].Role)
	assert.Equal(t, "Welcome to petstore", s.Transcript[0].Content)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		gw        *fakeGateway
		want      Phase
		wantError bool
	}{
		{"present", &fakeGateway{exists: true}, PhaseReady, false},
		{"absent", &fakeGateway{exists: false}, PhaseNotFound, false},
		{"network failure is lenient", &fakeGateway{existsErr: errors.New("connection refused")}, PhaseIdleError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.gw, "petstore", Options{})
			assert.Equal(t, tt.want, c.Validate(context.Background()))

			s := c.Snapshot()
			assert.Equal(t, tt.want, s.Phase)
			assert.Equal(t, tt.wantError, s.LastError != "")
		})
	}
}

func TestValidate_NotFoundIsTerminal(t *testing.T) {
	gw := &fakeGateway{exists: false}
	c := New(gw, "ghost", Options{})
	require.Equal(t, PhaseNotFound, c.Validate(context.Background()))

	gw.exists = true
	assert.Equal(t, PhaseNotFound, c.Validate(context.Background()))

	_, ok := c.Submit("hello?")
	assert.False(t, ok)
	assert.Zero(t, gw.calls.Load())
	assert.Len(t, c.Snapshot().Transcript, 1)
}

func TestSubmit_IgnoredWhileValidating(t *testing.T) {
	gw := &fakeGateway{}
	c := New(gw, "petstore", Options{})

	_, ok := c.Submit("too early")
	assert.False(t, ok)
	assert.Len(t, c.Snapshot().Transcript, 1)
}

func TestSend_Success(t *testing.T) {
	gw := &fakeGateway{reply: &gateway.ChatReply{
		Message: "Use GET /pets",
		Sources: []models.SourceReference{{Title: "Pets", Score: 0.9}},
	}}
	c := readyController(t, gw)
	c.SetDraft("How do I list pets?")

	reply, ok := c.Send(context.Background(), "  How do I list pets?  ")
	require.True(t, ok)
	assert.Equal(t, "Use GET /pets", reply.Content)

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	assert.Empty(t, s.Draft)
	require.Len(t, s.Transcript, 3)
	assert.Equal(t, models.RoleUser, s.Transcript[1].Role)
	assert.Equal(t, "  How do I list pets?  ", s.Transcript[1].Content, "content is kept as typed")
	assert.Equal(t, models.RoleAssistant, s.Transcript[2].Role)
	assert.Equal(t, []models.SourceReference{{Title: "Pets", Score: 0.9}}, s.Transcript[2].Sources)

	require.Len(t, gw.sends, 1)
	assert.Equal(t, "  How do I list pets?  ", gw.sends[0].Message)
	assert.Equal(t, "petstore", gw.sends[0].AssistantID)
	assert.Regexp(t, `^petstore-\d+$`, gw.sends[0].SessionID)
}

func TestSend_FailureAppendsFallback(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("502 bad gateway")}
	c := readyController(t, gw)
	before := len(c.Snapshot().Transcript)

	reply, ok := c.Send(context.Background(), "hello")
	require.True(t, ok)
	assert.Equal(t, DefaultFallbackReply, reply.Content)
	assert.Empty(t, reply.Sources)

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	require.Len(t, s.Transcript, before+2)
	assert.Equal(t, models.RoleUser, s.Transcript[before].Role)
	assert.Equal(t, "hello", s.Transcript[before].Content)
	assert.Equal(t, models.RoleAssistant, s.Transcript[before+1].Role)
	assert.Equal(t, DefaultFallbackReply, s.Transcript[before+1].Content)
	assert.NotEmpty(t, s.LastError)
}

func TestSend_CustomFallback(t *testing.T) {
	gw := &fakeGateway{exists: true, sendErr: errors.New("down")}
	c := New(gw, "petstore", Options{FallbackReply: "Try later."})
	c.Validate(context.Background())

	reply, _ := c.Send(context.Background(), "hi")
	assert.Equal(t, "Try later.", reply.Content)
}

func TestSend_BlankIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	c := readyController(t, gw)

	for _, in := range []string{"", "   ", "\n\t"} {
		_, ok := c.Send(context.Background(), in)
		assert.False(t, ok, "input %q", in)
	}
	assert.Zero(t, gw.calls.Load())
	assert.Len(t, c.Snapshot().Transcript, 1)
}

func TestSubmit_SecondSendWhileSendingIsNoop(t *testing.T) {
	gw := &fakeGateway{hold: make(chan struct{}), reply: &gateway.ChatReply{Message: "done"}}
	c := readyController(t, gw)

	first, ok := c.Submit("first")
	require.True(t, ok)
	assert.Equal(t, PhaseSending, c.Phase())

	_, ok = c.Submit("second")
	assert.False(t, ok)

	done := make(chan models.Message)
	go func() { done <- first.Run(context.Background()) }()

	_, ok = c.Send(context.Background(), "third")
	assert.False(t, ok)

	close(gw.hold)
	reply := <-done
	assert.Equal(t, "done", reply.Content)

	assert.Equal(t, int32(1), gw.calls.Load())
	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	require.Len(t, s.Transcript, 3)
	assert.Equal(t, "first", s.Transcript[1].Content)
}

func TestSubmit_UserMessagePrecedesReply(t *testing.T) {
	gw := &fakeGateway{hold: make(chan struct{}), reply: &gateway.ChatReply{Message: "pong"}}
	c := readyController(t, gw)

	ex, ok := c.Submit("ping")
	require.True(t, ok)

	// The user message is visible before the call resolves
	s := c.Snapshot()
	require.Len(t, s.Transcript, 2)
	assert.Equal(t, ex.UserMessage(), s.Transcript[1])

	close(gw.hold)
	ex.Run(context.Background())
	ex.Run(context.Background())

	s = c.Snapshot()
	require.Len(t, s.Transcript, 3)
	for i := 1; i < len(s.Transcript); i++ {
		assert.Greater(t, s.Transcript[i].ID, s.Transcript[i-1].ID)
		assert.False(t, s.Transcript[i].Timestamp.Before(s.Transcript[i-1].Timestamp))
	}
	assert.Equal(t, int32(1), gw.calls.Load())
	require.Len(t, gw.sends, 1)
	assert.Equal(t, ex.Correlator(), gw.sends[0].SessionID)
}

func TestSend_AllowedAfterLenientValidation(t *testing.T) {
	gw := &fakeGateway{existsErr: errors.New("timeout"), reply: &gateway.ChatReply{Message: "still here"}}
	c := New(gw, "petstore", Options{})
	require.Equal(t, PhaseIdleError, c.Validate(context.Background()))

	reply, ok := c.Send(context.Background(), "anyone?")
	require.True(t, ok)
	assert.Equal(t, "still here", reply.Content)
	assert.Equal(t, PhaseReady, c.Phase())
}

func TestClear(t *testing.T) {
	gw := &fakeGateway{reply: &gateway.ChatReply{Message: "a"}}
	c := readyController(t, gw)
	c.Send(context.Background(), "q1")
	c.Send(context.Background(), "q2")
	require.Len(t, c.Snapshot().Transcript, 5)
	seed := c.Snapshot().Transcript[0]

	c.Clear()

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	require.Len(t, s.Transcript, 1)
	assert.Equal(t, models.RoleAssistant, s.Transcript[0].Role)
	assert.Equal(t, seed.Content, s.Transcript[0].Content)
	assert.Greater(t, s.Transcript[0].ID, seed.ID)
}

func TestClear_DoesNotChangeSendingPhase(t *testing.T) {
	gw := &fakeGateway{hold: make(chan struct{}), reply: &gateway.ChatReply{Message: "late"}}
	c := readyController(t, gw)

	ex, _ := c.Submit("q")
	c.Clear()
	assert.Equal(t, PhaseSending, c.Phase())

	close(gw.hold)
	ex.Run(context.Background())

	s := c.Snapshot()
	assert.Equal(t, PhaseReady, s.Phase)
	require.Len(t, s.Transcript, 2)
	assert.Equal(t, "late", s.Transcript[1].Content)
}

func TestSnapshot_IsACopy(t *testing.T) {
	c := readyController(t, &fakeGateway{})
	s := c.Snapshot()
	s.Transcript[0].Content = "mutated"
	assert.NotEqual(t, "mutated", c.Snapshot().Transcript[0].Content)
}

func TestController_AgainstBackend(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetAssistants(map[string]any{"chatbot_id": "petstore", "document_count": 3})
	gw := gateway.New(b.URL, gateway.WithRetry(gateway.NoRetry()))

	c := New(gw, "petstore", Options{})
	require.Equal(t, PhaseReady, c.Validate(context.Background()))

	ex, ok := c.Submit("list pets")
	require.True(t, ok)
	reply := ex.Run(context.Background())
	assert.Equal(t, "You said: list pets", reply.Content)
	require.Len(t, b.Chats(), 1)
	assert.Equal(t, ex.Correlator(), b.Chats()[0].SessionID)
	assert.Equal(t, "petstore", b.Chats()[0].ChatbotID)
	require.Len(t, reply.Sources, 1)
	assert.Equal(t, 87, reply.Sources[0].Percent())

	b.On(testutil.RouteChat, func([]byte) (int, any) {
		return http.StatusInternalServerError, map[string]any{"detail": "LLM unavailable"}
	})
	reply, ok = c.Send(context.Background(), "again")
	require.True(t, ok)
	assert.Equal(t, DefaultFallbackReply, reply.Content)
	assert.Equal(t, PhaseReady, c.Phase())
	assert.Equal(t, 2, b.Hits(testutil.RouteChat))
}

func TestRenderWelcome(t *testing.T) {
	assert.Equal(t, "Hi! I'm the **petstore** assistant. Ask me anything about its documentation.",
		RenderWelcome("", "petstore", ""))
	assert.Equal(t, "petstore from https://x",
		RenderWelcome("{{assistant_id}}{{#source_url}} from {{source_url}}{{/source_url}}", "petstore", "https://x"))
	assert.Equal(t, "petstore",
		RenderWelcome("{{assistant_id}}{{#source_url}} from {{source_url}}{{/source_url}}", "petstore", ""))
}
