package provision

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docet-dev/docet/internal/core/db"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	list      []models.AssistantSummary
	listErr   error
	result    *gateway.CreateResult
	createErr error
	creates   atomic.Int32
	lastReq   gateway.CreateRequest
}

func (f *fakeGateway) ListAssistants(ctx context.Context) ([]models.AssistantSummary, error) {
	return f.list, f.listErr
}

func (f *fakeGateway) CreateAssistant(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResult, error) {
	f.creates.Add(1)
	f.lastReq = req
	return f.result, f.createErr
}

func (f *fakeGateway) AnalyzeSource(ctx context.Context, sourceURL string) (*gateway.Analysis, error) {
	return &gateway.Analysis{URL: sourceURL, Status: "supported"}, nil
}

func newLedger(t *testing.T) *db.DB {
	t.Helper()
	ledger, err := db.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name   string
		gw     *fakeGateway
		status ListStatus
		count  int
	}{
		{"loaded", &fakeGateway{list: []models.AssistantSummary{{AssistantID: "a"}, {AssistantID: "b"}}}, ListLoaded, 2},
		{"empty is loaded", &fakeGateway{list: nil}, ListLoaded, 0},
		{"failed", &fakeGateway{listErr: errors.New("connection refused")}, ListFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.gw, Options{})
			assert.Equal(t, ListLoading, w.Listing().Status)

			l := w.Refresh(context.Background())
			assert.Equal(t, tt.status, l.Status)
			assert.Len(t, l.Assistants, tt.count)
			if tt.status == ListFailed {
				assert.Contains(t, l.Reason, "connection refused")
			} else {
				assert.NotNil(t, l.Assistants)
			}
		})
	}
}

func TestRetry_RecoversAfterFailure(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailList(http.StatusServiceUnavailable)
	gw := gateway.New(b.URL, gateway.WithRetry(gateway.NoRetry()))
	w := New(gw, Options{})

	require.Equal(t, ListFailed, w.Refresh(context.Background()).Status)

	b.FailList(0)
	b.SetAssistants(map[string]any{"chatbot_id": "petstore", "document_count": 5})
	l := w.Retry(context.Background())
	require.Equal(t, ListLoaded, l.Status)
	require.Len(t, l.Assistants, 1)
	assert.Equal(t, "petstore", l.Assistants[0].AssistantID)
	assert.Equal(t, 2, b.Hits(testutil.RouteList))
}

func TestRefresh_EnrichesFromLedger(t *testing.T) {
	ledger := newLedger(t)
	updated := time.Date(2025, 2, 3, 4, 5, 0, 0, time.UTC)
	require.NoError(t, ledger.RecordAssistant(db.Assistant{AssistantID: "petstore", SourceURL: "https://petstore.example"}, updated))

	gw := &fakeGateway{list: []models.AssistantSummary{
		{AssistantID: "petstore", LastUpdated: models.Unknown},
		{AssistantID: "elsewhere", LastUpdated: models.Unknown},
	}}
	w := New(gw, Options{Ledger: ledger})

	l := w.Refresh(context.Background())
	require.Len(t, l.Assistants, 2)
	assert.Equal(t, "https://petstore.example", l.Assistants[0].SourceURL)
	assert.Equal(t, FormatLastUpdated(updated), l.Assistants[0].LastUpdated)
	assert.Empty(t, l.Assistants[1].SourceURL)
	assert.Equal(t, models.Unknown, l.Assistants[1].LastUpdated)
}

func TestOpenForm_PrefillsGeneratedID(t *testing.T) {
	w := New(&fakeGateway{}, Options{})

	f := w.OpenForm()
	assert.Regexp(t, regexp.MustCompile(`^docs-[0-9a-z]+-[0-9a-f]{6}$`), f.AssistantID)
	assert.Empty(t, f.SourceURL)
	assert.False(t, f.Submitting)

	got, ok := w.Form()
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestSubmit_ValidationNeverCallsBackend(t *testing.T) {
	tests := []struct {
		name      string
		sourceURL string
		id        string
		wantMsg   string
	}{
		{"empty url", "", "petstore", "Source URL is required"},
		{"blank url", "   ", "petstore", "Source URL is required"},
		{"empty id", "https://x", "", "Assistant ID is required"},
		{"both empty", "", "", "Source URL and assistant ID are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			w := New(gw, Options{})
			w.OpenForm()
			w.SetSourceURL(tt.sourceURL)
			w.SetAssistantID(tt.id)

			id, err := w.Submit(context.Background())
			assert.Empty(t, id)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, gw.creates.Load())

			f, ok := w.Form()
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, f.Error)
			assert.False(t, f.Submitting)
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	ledger := newLedger(t)
	gw := &fakeGateway{result: &gateway.CreateResult{
		Status: gateway.StatusSuccess, AssistantID: "petstore-confirmed", TotalDocuments: 7, DetectedType: "openapi",
	}}
	w := New(gw, Options{Ledger: ledger})
	w.OpenForm()
	w.SetSourceURL(" https://petstore.example/openapi.json ")
	w.SetAssistantID("petstore")

	id, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "petstore-confirmed", id)

	_, open := w.Form()
	assert.False(t, open)

	assert.Equal(t, gateway.CreateRequest{
		SourceURL: "https://petstore.example/openapi.json", AssistantID: "petstore", ForceReingestion: true,
	}, gw.lastReq)

	row, err := ledger.GetAssistant("petstore-confirmed")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "petstore", row.RequestedID)
	assert.Equal(t, 7, row.DocumentCount)

	ok, failed, err := ledger.ProvisionAttempts("petstore-confirmed")
	require.NoError(t, err)
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
}

func TestSubmit_Failures(t *testing.T) {
	tests := []struct {
		name    string
		gw      *fakeGateway
		wantMsg string
	}{
		{
			name:    "non-success status with error",
			gw:      &fakeGateway{result: &gateway.CreateResult{Status: "failed", Error: "No OpenAPI document found"}},
			wantMsg: "No OpenAPI document found",
		},
		{
			name:    "non-success status with message",
			gw:      &fakeGateway{result: &gateway.CreateResult{Status: "partial", Message: "Only 2 of 9 pages ingested"}},
			wantMsg: "Only 2 of 9 pages ingested",
		},
		{
			name:    "non-success status without reason",
			gw:      &fakeGateway{result: &gateway.CreateResult{Status: "failed"}},
			wantMsg: GenericCreateError,
		},
		{
			name:    "http error detail",
			gw:      &fakeGateway{createErr: &gateway.APIError{Op: "create_assistant", Status: 400, Detail: "Unsupported source"}},
			wantMsg: "Unsupported source",
		},
		{
			name:    "empty response",
			gw:      &fakeGateway{},
			wantMsg: GenericCreateError,
		},
		{
			name:    "network error",
			gw:      &fakeGateway{createErr: errors.New("dial tcp: connection refused")},
			wantMsg: GenericCreateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.gw, Options{})
			w.OpenForm()
			w.SetSourceURL("https://x")
			w.SetAssistantID("x")

			id, err := w.Submit(context.Background())
			assert.Error(t, err)
			assert.Empty(t, id)

			f, ok := w.Form()
			require.True(t, ok, "form must stay open")
			assert.Equal(t, tt.wantMsg, f.Error)
			assert.False(t, f.Submitting)
			assert.Equal(t, "https://x", f.SourceURL)
		})
	}
}

func TestSubmit_Resubmittable(t *testing.T) {
	gw := &fakeGateway{createErr: errors.New("timeout")}
	w := New(gw, Options{})
	w.OpenForm()
	w.SetSourceURL("https://x")

	_, err := w.Submit(context.Background())
	require.Error(t, err)

	gw.createErr = nil
	gw.result = &gateway.CreateResult{Status: gateway.StatusSuccess}
	id, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^docs-`, id)
	assert.Equal(t, int32(2), gw.creates.Load())
}

func TestSubmit_NoForm(t *testing.T) {
	w := New(&fakeGateway{}, Options{})
	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoForm)
}

func TestCancel(t *testing.T) {
	w := New(&fakeGateway{}, Options{})
	w.OpenForm()
	w.Cancel()

	_, ok := w.Form()
	assert.False(t, ok)

	f := w.OpenForm()
	assert.Empty(t, f.SourceURL)
	assert.Empty(t, f.Error)
}

func TestSubmit_AgainstBackend(t *testing.T) {
	b := testutil.NewBackend(t)
	b.On(testutil.RouteIngest, func([]byte) (int, any) {
		return http.StatusBadRequest, map[string]any{"detail": "Could not detect documentation type"}
	})
	w := New(gateway.New(b.URL), Options{})
	w.OpenForm()
	w.SetSourceURL("https://example.com")

	_, err := w.Submit(context.Background())
	require.Error(t, err)
	f, _ := w.Form()
	assert.Equal(t, "Could not detect documentation type", f.Error)

	ingests := b.Ingests()
	require.Len(t, ingests, 1)
	assert.True(t, ingests[0].ForceReingestion)
}

func TestAnalyze(t *testing.T) {
	w := New(&fakeGateway{}, Options{})

	_, err := w.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrNoForm)

	w.OpenForm()
	_, err = w.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	w.SetSourceURL("https://x")
	a, err := w.Analyze(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Supported())
}

func TestGenerateAssistantID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "docs-s44we8-0a1b2c", generateAssistantID(now, "0a1b2c3d-aaaa-bbbb-cccc-dddddddddddd"))

	a, b := GenerateAssistantID(), GenerateAssistantID()
	assert.NotEqual(t, a, b)
}
