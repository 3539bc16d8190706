// Package provision discovers existing assistants and creates new ones.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docet-dev/docet/internal/core/db"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/models"
	"github.com/docet-dev/docet/pkg/logger"
	"github.com/docet-dev/docet/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenericCreateError is shown when a failed creation carries no usable reason
const GenericCreateError = "Failed to create assistant. Please try again."

var (
	// ErrValidation is returned when the form is incomplete; no request was sent
	ErrValidation = errors.New("form is incomplete")
	// ErrNoForm is returned when there is no open form to act on
	ErrNoForm = errors.New("no form is open")
	// ErrBusy is returned while a submission is already in flight
	ErrBusy = errors.New("submission already in progress")
)

// ListStatus is the state of the assistant list
type ListStatus string

const (
	ListLoading ListStatus = "loading"
	ListLoaded  ListStatus = "loaded"
	ListFailed  ListStatus = "failed"
)

// Listing is a snapshot of the assistant list. An empty Loaded list is valid.
type Listing struct {
	Status     ListStatus
	Assistants []models.AssistantSummary
	Reason     string // set when Failed
}

// Form is the create-assistant form
type Form struct {
	SourceURL   string
	AssistantID string
	Submitting  bool
	Error       string
}

// Gateway is the subset of the backend client provisioning needs
type Gateway interface {
	ListAssistants(ctx context.Context) ([]models.AssistantSummary, error)
	CreateAssistant(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResult, error)
	AnalyzeSource(ctx context.Context, sourceURL string) (*gateway.Analysis, error)
}

// Ledger records what this client provisioned. Satisfied by *db.DB.
type Ledger interface {
	RecordAssistant(a db.Assistant, at time.Time) error
	LogProvisionAttempt(assistantID, sourceURL string, at time.Time, failure error) error
	ListAssistants() ([]db.Assistant, error)
}

// Options tunes a Workflow. Ledger may be nil.
type Options struct {
	Ledger Ledger
	Logger *logger.Logger
	Now    func() time.Time
}

// Workflow owns the assistant list and at most one create form
type Workflow struct {
	gw     Gateway
	ledger Ledger
	log    *logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	listing Listing
	form    *Form
}

// New creates a workflow whose list starts out loading
func New(gw Gateway, opts Options) *Workflow {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Workflow{
		gw:      gw,
		ledger:  opts.Ledger,
		log:     logger.OrNop(opts.Logger).Named("provision"),
		now:     now,
		listing: Listing{Status: ListLoading},
	}
}

// Listing returns the current list state
func (w *Workflow) Listing() Listing {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.listing
	l.Assistants = append([]models.AssistantSummary(nil), w.listing.Assistants...)
	return l
}

// Refresh fetches the assistant list
func (w *Workflow) Refresh(ctx context.Context) Listing {
	w.mu.Lock()
	w.listing = Listing{Status: ListLoading}
	w.mu.Unlock()

	list, err := w.gw.ListAssistants(ctx)

	w.mu.Lock()
	if err != nil {
		w.log.Warn("listing assistants failed", zap.Error(err))
		w.listing = Listing{Status: ListFailed, Reason: err.Error()}
	} else {
		w.listing = Listing{Status: ListLoaded, Assistants: w.enrich(list)}
	}
	w.mu.Unlock()

	return w.Listing()
}

// Retry re-runs the same fetch; it is the affordance offered after a failure
func (w *Workflow) Retry(ctx context.Context) Listing {
	return w.Refresh(ctx)
}

// enrich fills in what the backend list lacks from the local ledger
func (w *Workflow) enrich(list []models.AssistantSummary) []models.AssistantSummary {
	if list == nil {
		list = []models.AssistantSummary{}
	}
	if w.ledger == nil {
		return list
	}

	rows, err := w.ledger.ListAssistants()
	if err != nil {
		w.log.Warn("reading provisioning ledger failed", zap.Error(err))
		return list
	}
	known := make(map[string]db.Assistant, len(rows))
	for _, r := range rows {
		known[r.AssistantID] = r
	}

	for i := range list {
		r, ok := known[list[i].AssistantID]
		if !ok {
			continue
		}
		if list[i].SourceURL == "" {
			list[i].SourceURL = r.SourceURL
		}
		if list[i].LastUpdated == models.Unknown && !r.UpdatedAt.IsZero() {
			list[i].LastUpdated = FormatLastUpdated(r.UpdatedAt)
		}
	}
	return list
}

// FormatLastUpdated renders a ledger timestamp as the list's display string
func FormatLastUpdated(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// OpenForm creates a fresh form pre-filled with a generated assistant id,
// replacing any form that was open
func (w *Workflow) OpenForm() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = &Form{AssistantID: generateAssistantID(w.now(), uuid.NewString())}
	return *w.form
}

// Form returns the open form, if any
func (w *Workflow) Form() (Form, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form == nil {
		return Form{}, false
	}
	return *w.form, true
}

// SetSourceURL edits the open form
func (w *Workflow) SetSourceURL(v string) {
	w.edit(func(f *Form) { f.SourceURL = v })
}

// SetAssistantID edits the open form
func (w *Workflow) SetAssistantID(v string) {
	w.edit(func(f *Form) { f.AssistantID = v })
}

func (w *Workflow) edit(fn func(*Form)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.form != nil && !w.form.Submitting {
		fn(w.form)
	}
}

// Cancel discards the form. A submission already in flight still completes
// against the backend, but its outcome no longer touches any form.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = nil
}

// Submit validates the form locally and, if complete, asks the backend to create
// the assistant with re-ingestion forced. On success the form closes and the
// server-confirmed id is returned. On failure the form stays open with Error set.
func (w *Workflow) Submit(ctx context.Context) (string, error) {
	w.mu.Lock()
	f := w.form
	if f == nil {
		w.mu.Unlock()
		return "", ErrNoForm
	}
	if f.Submitting {
		w.mu.Unlock()
		return "", ErrBusy
	}

	sourceURL := strings.TrimSpace(f.SourceURL)
	requestedID := strings.TrimSpace(f.AssistantID)
	if msg := validate(sourceURL, requestedID); msg != "" {
		f.Error = msg
		w.mu.Unlock()
		metrics.RecordProvisionAttempt("invalid")
		return "", fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	f.Submitting = true
	f.Error = ""
	w.mu.Unlock()

	res, err := w.gw.CreateAssistant(ctx, gateway.CreateRequest{
		SourceURL:        sourceURL,
		AssistantID:      requestedID,
		ForceReingestion: true,
	})

	if err == nil && res == nil {
		err = errors.New("empty create response")
	}
	if err == nil && !res.Succeeded() {
		err = &RejectedError{Status: res.Status, Reason: res.Reason()}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	current := w.form == f

	if err != nil {
		w.log.Warn("creating assistant failed",
			zap.String("assistant_id", requestedID),
			zap.String("source_url", sourceURL),
			zap.Error(err))
		metrics.RecordProvisionAttempt("failed")
		w.logAttempt(requestedID, sourceURL, err)
		if current {
			f.Submitting = false
			f.Error = FailureMessage(err)
		}
		return "", err
	}

	id := res.AssistantID
	if id == "" {
		id = requestedID
	}
	w.log.Info("assistant created",
		zap.String("assistant_id", id),
		zap.String("requested_id", requestedID),
		zap.Int("documents", res.TotalDocuments))
	metrics.RecordProvisionAttempt("success")
	w.logAttempt(id, sourceURL, nil)
	w.record(db.Assistant{
		AssistantID:   id,
		SourceURL:     sourceURL,
		RequestedID:   requestedID,
		DetectedType:  res.DetectedType,
		DocumentCount: res.TotalDocuments,
	})
	if current {
		w.form = nil
	}
	return id, nil
}

// Analyze previews the open form's source URL without creating anything
func (w *Workflow) Analyze(ctx context.Context) (*gateway.Analysis, error) {
	f, ok := w.Form()
	if !ok {
		return nil, ErrNoForm
	}
	sourceURL := strings.TrimSpace(f.SourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("%w: source URL is required", ErrValidation)
	}
	return w.gw.AnalyzeSource(ctx, sourceURL)
}

func (w *Workflow) logAttempt(id, sourceURL string, failure error) {
	if w.ledger == nil {
		return
	}
	if err := w.ledger.LogProvisionAttempt(id, sourceURL, w.now(), failure); err != nil {
		w.log.Warn("writing provisioning log failed", zap.Error(err))
	}
}

func (w *Workflow) record(a db.Assistant) {
	if w.ledger == nil {
		return
	}
	if err := w.ledger.RecordAssistant(a, w.now()); err != nil {
		w.log.Warn("writing provisioning ledger failed", zap.Error(err))
	}
}

func validate(sourceURL, assistantID string) string {
	switch {
	case sourceURL == "" && assistantID == "":
		return "Source URL and assistant ID are required"
	case sourceURL == "":
		return "Source URL is required"
	case assistantID == "":
		return "Assistant ID is required"
	}
	return ""
}

// RejectedError is a 2xx ingest response without a success status
type RejectedError struct {
	Status string
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ingestion %s: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("ingestion %s", e.Status)
}

// FailureMessage picks the user-facing text for a failed submission: the
// backend's own reason when it gave one, otherwise GenericCreateError
func FailureMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Reason != "" {
		return rejected.Reason
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return GenericCreateError
}

// GenerateAssistantID suggests an id from the current time and a short random
// suffix. It is a convenience default; the backend decides whether it collides.
func GenerateAssistantID() string {
	return generateAssistantID(time.Now(), uuid.NewString())
}

func generateAssistantID(now time.Time, random string) string {
	suffix := strings.ReplaceAll(random, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "docs-" + strconv.FormatInt(now.Unix(), 36) + "-" + suffix
}
