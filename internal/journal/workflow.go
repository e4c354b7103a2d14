package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"medjournal/internal/classifier"
	"medjournal/internal/crypto"
	"medjournal/internal/models"
	"medjournal/internal/repository"
	"medjournal/internal/signer"
)

// State of one wallet's entry workflow.
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateClassified  State = "classified"
	StateSigning     State = "signing"
	StatePersisting  State = "persisting"
	StateError       State = "error"
)

var (
	// ErrBusy means another operation is already in flight for this wallet.
	ErrBusy = errors.New("another operation is in progress")

	// ErrNotClassified means there is no analyzed draft to confirm.
	ErrNotClassified = errors.New("no analyzed entry to confirm")
)

// Draft is the entry being worked on before it is persisted. Text survives
// every failure so the user never retypes an entry.
type Draft struct {
	Text     string
	Analysis *models.AnalysisResult
}

// Status is a point-in-time snapshot of the workflow.
type Status struct {
	State       State                  `json:"state"`
	DraftText   string                 `json:"draft_text,omitempty"`
	Analysis    *models.AnalysisResult `json:"analysis,omitempty"`
	SubmittedTx string                 `json:"submitted_tx,omitempty"`
	Notice      string                 `json:"notice,omitempty"`
}

// Workflow drives one wallet's entries from free text through analysis,
// signing and persistence. All methods are safe for concurrent use; at most
// one operation runs at a time and the rest are rejected with ErrBusy rather
// than queued.
//
// Nothing here retries automatically. Every attempt is user-initiated and a
// failed step leaves the draft in place for the next one.
type Workflow struct {
	account        string
	classifier     classifier.Classifier
	signer         signer.Signer
	repo           repository.EntryRepository
	logger         *zap.Logger
	persistTimeout time.Duration

	mu          sync.Mutex
	state       State
	draft       Draft
	submittedTx string
	notice      string
	entries     []models.HealthEntry
	loaded      bool
	saves       uint64 // bumped per persisted entry, fences stale list loads
}

func NewWorkflow(account string, cls classifier.Classifier, sig signer.Signer, repo repository.EntryRepository, persistTimeout time.Duration, logger *zap.Logger) *Workflow {
	if persistTimeout <= 0 {
		persistTimeout = 10 * time.Second
	}
	return &Workflow{
		account:        account,
		classifier:     cls,
		signer:         sig,
		repo:           repo,
		logger:         logger,
		persistTimeout: persistTimeout,
		state:          StateIdle,
	}
}

// Status returns a snapshot of the current workflow state.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Status{
		State:       w.state,
		DraftText:   w.draft.Text,
		SubmittedTx: w.submittedTx,
		Notice:      w.notice,
	}
	if w.draft.Analysis != nil {
		analysis := *w.draft.Analysis
		s.Analysis = &analysis
	}
	return s
}

// Analyze runs the AI classifier over text and stages the result for
// confirmation. Calling it again replaces any previous unconfirmed draft,
// except that unanalyzable input leaves the previous draft untouched.
func (w *Workflow) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	w.mu.Lock()
	if w.busyLocked() {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	prevState := w.state
	prevDraft := w.draft
	prevSubmittedTx := w.submittedTx
	prevNotice := w.notice
	w.state = StateClassifying
	w.draft = Draft{Text: text}
	w.submittedTx = ""
	w.notice = ""
	w.mu.Unlock()

	result, err := w.classifier.Classify(ctx, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if errors.Is(err, classifier.ErrInvalidInput) {
			// The new text was never analyzable, so whatever was staged
			// before stays staged and the user corrects the input inline.
			w.state = prevState
			w.draft = prevDraft
			w.submittedTx = prevSubmittedTx
			w.notice = prevNotice
			return nil, err
		}
		w.state = StateError
		w.notice = "analysis failed"
		w.logger.Error("Entry analysis failed",
			zap.String("account", w.account),
			zap.Error(err))
		return nil, err
	}

	w.state = StateClassified
	w.draft.Analysis = result
	return result, nil
}

// Confirm signs the analyzed draft and persists it as a verified entry.
// Allowed from the classified state, and from the error state when the
// analysis is still staged, so a failed sign or save can be retried without
// re-analyzing.
//
// A rejection at the wallet prompt is not an error state: the draft returns
// to classified and the user may confirm again or abandon.
func (w *Workflow) Confirm(ctx context.Context) (*models.HealthEntry, error) {
	w.mu.Lock()
	if w.busyLocked() {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	if w.draft.Analysis == nil {
		w.mu.Unlock()
		return nil, ErrNotClassified
	}
	text := w.draft.Text
	analysis := *w.draft.Analysis
	w.state = StateSigning
	w.notice = ""
	w.mu.Unlock()

	now := time.Now().UTC()
	contentHash, err := crypto.ContentHash(text, analysis, now, w.account)
	if err != nil {
		return nil, w.failConfirm(fmt.Errorf("failed to compute content hash: %w", err))
	}

	receipt, err := w.signer.Sign(ctx, w.account, contentHash, func(txHash string) {
		w.mu.Lock()
		w.submittedTx = txHash
		w.mu.Unlock()
	})
	if err != nil {
		if errors.Is(err, signer.ErrUserRejected) {
			w.mu.Lock()
			w.state = StateClassified
			w.submittedTx = ""
			w.mu.Unlock()
			return nil, err
		}
		return nil, w.failConfirm(err)
	}

	confidence := analysis.Confidence
	entry := &models.HealthEntry{
		WalletAddress:   w.account,
		EntryText:       text,
		Symptoms:        analysis.Symptoms,
		Mood:            analysis.Mood,
		Severity:        analysis.Severity,
		Summary:         analysis.Summary,
		ConfidenceScore: &confidence,
		DataHash:        contentHash,
		TxHash:          receipt.Ref,
		BlockNumber:     receipt.BlockNumber,
	}

	w.mu.Lock()
	w.state = StatePersisting
	w.mu.Unlock()

	persistCtx, cancel := context.WithTimeout(ctx, w.persistTimeout)
	defer cancel()
	if err := w.repo.SaveEntry(persistCtx, entry); err != nil {
		return nil, w.failConfirm(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateIdle
	w.draft = Draft{}
	w.submittedTx = ""
	w.saves++
	if w.loaded {
		w.entries = append([]models.HealthEntry{*entry}, w.entries...)
	}
	w.logger.Info("Entry verified and persisted",
		zap.String("account", w.account),
		zap.String("entry_id", entry.ID),
		zap.String("tx_hash", entry.TxHash))
	return entry, nil
}

// failConfirm moves the workflow to the error state, keeping the draft and
// its analysis so the user can confirm again.
func (w *Workflow) failConfirm(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateError
	w.notice = "confirmation failed"
	w.logger.Error("Entry confirmation failed",
		zap.String("account", w.account),
		zap.Error(err))
	return err
}

// Abandon discards the current draft. It is a no-op when nothing is staged
// and rejected while an operation is in flight.
func (w *Workflow) Abandon() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busyLocked() {
		return ErrBusy
	}
	w.state = StateIdle
	w.draft = Draft{}
	w.submittedTx = ""
	w.notice = ""
	return nil
}

// Entries returns this wallet's verified entries, newest first. The list is
// loaded once from the store and kept current as new entries are confirmed.
// A load that raced with a save is discarded rather than cached, since its
// snapshot may predate the saved row; the next call reloads.
func (w *Workflow) Entries(ctx context.Context) ([]models.HealthEntry, error) {
	w.mu.Lock()
	if w.loaded {
		out := make([]models.HealthEntry, len(w.entries))
		copy(out, w.entries)
		w.mu.Unlock()
		return out, nil
	}
	startSaves := w.saves
	w.mu.Unlock()

	entries, err := w.repo.GetEntriesByWallet(ctx, w.account)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.loaded && w.saves == startSaves {
		w.entries = entries
		w.loaded = true
	}
	if w.loaded {
		out := make([]models.HealthEntry, len(w.entries))
		copy(out, w.entries)
		return out, nil
	}
	return entries, nil
}

func (w *Workflow) busyLocked() bool {
	switch w.state {
	case StateClassifying, StateSigning, StatePersisting:
		return true
	}
	return false
}
