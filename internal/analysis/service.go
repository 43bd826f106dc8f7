// Package analysis orchestrates one analysis job from email resolution
// through extraction to the aggregated result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/altafino/invoice-analyzer/internal/artifact"
	"github.com/altafino/invoice-analyzer/internal/errorlog"
	"github.com/altafino/invoice-analyzer/internal/extract"
	"github.com/altafino/invoice-analyzer/internal/fetch"
	"github.com/altafino/invoice-analyzer/internal/models"
	"github.com/altafino/invoice-analyzer/internal/progress"
	"github.com/altafino/invoice-analyzer/internal/provider"
	"github.com/altafino/invoice-analyzer/internal/types"
	"github.com/google/uuid"
)

// Request selects the emails to analyze and the credential to do it with.
type Request struct {
	Provider   string
	Credential models.Credential
	EmailIDs   []string
	SessionID  string
}

type jobState struct {
	mu         sync.Mutex
	agg        *Aggregator
	finishedAt time.Time
}

func (j *jobState) setAggregator(agg *Aggregator) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.agg = agg
}

func (j *jobState) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finishedAt = time.Now()
}

func (j *jobState) result() models.AnalysisResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.agg.Result()
}

// Extractor turns one attachment blob into an invoice record.
type Extractor interface {
	Extract(ctx context.Context, blob *models.AttachmentBlob) (*models.InvoiceRecord, error)
}

// Service runs analysis jobs. Analyze returns a job id immediately; the
// pipeline runs detached and is observed through the progress tracker and
// Result.
type Service struct {
	cfg        *types.Config
	tracker    *progress.Tracker
	extractor  Extractor
	store      artifact.Store
	failureLog *errorlog.Manager
	logger     *slog.Logger

	// newProvider is swapped out in tests.
	newProvider func(ctx context.Context, tag string, cred models.Credential, cfg *types.Config, logger *slog.Logger) (provider.Provider, error)

	mu   sync.Mutex
	jobs map[string]*jobState
}

func NewService(cfg *types.Config, tracker *progress.Tracker, extractor Extractor, store artifact.Store, logger *slog.Logger) *Service {
	return &Service{
		cfg:         cfg,
		tracker:     tracker,
		extractor:   extractor,
		store:       store,
		logger:      logger,
		newProvider: provider.New,
		jobs:        make(map[string]*jobState),
	}
}

// SetProviderFactory overrides how providers are constructed. Tests use it
// to substitute an in-memory mailbox.
func (s *Service) SetProviderFactory(f func(ctx context.Context, tag string, cred models.Credential, cfg *types.Config, logger *slog.Logger) (provider.Provider, error)) {
	s.newProvider = f
}

// SetFailureLog attaches a persistent failure audit log. Without one the
// service only reports failures through the job result.
func (s *Service) SetFailureLog(m *errorlog.Manager) {
	s.failureLog = m
}

func (s *Service) recordFailure(jobID, sessionID, emailID, filename, reason string, cause error) {
	if s.failureLog == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.failureLog.LogError(errorlog.AnalysisError{
		JobID:     jobID,
		SessionID: sessionID,
		EmailID:   emailID,
		Filename:  filename,
		Reason:    reason,
		ErrorMsg:  msg,
	}); err != nil {
		s.logger.Warn("failed to record analysis failure", "job_id", jobID, "error", err)
	}
}

// Analyze starts a job over the requested emails and returns its id. The
// credential is validated up front so an unusable one fails the call rather
// than the background job.
func (s *Service) Analyze(ctx context.Context, req Request) (string, error) {
	if len(req.EmailIDs) == 0 {
		return "", fmt.Errorf("no email ids to analyze")
	}

	p, err := s.newProvider(ctx, req.Provider, req.Credential, s.cfg, s.logger)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	if req.SessionID == "" {
		req.SessionID = jobID
	}

	state := &jobState{agg: NewAggregator(0, nil)}
	s.mu.Lock()
	s.jobs[jobID] = state
	s.mu.Unlock()
	s.tracker.Create(jobID)

	go s.run(jobID, state, p, req)

	return jobID, nil
}

// Result snapshots a job's aggregated outcome. The snapshot is valid at any
// point of the job's life; before completion it simply holds fewer entries.
func (s *Service) Result(jobID string) (models.AnalysisResult, bool) {
	s.mu.Lock()
	state, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return models.AnalysisResult{}, false
	}
	return state.result(), true
}

// CleanupExpired drops finished jobs older than retention, mirroring the
// tracker's purge, and returns how many were removed.
func (s *Service) CleanupExpired(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-retention)
	for id, state := range s.jobs {
		state.mu.Lock()
		expired := !state.finishedAt.IsZero() && state.finishedAt.Before(cutoff)
		state.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// run is the detached job body. It resolves emails, fans the attachment
// units out over a bounded worker pool and drives the tracker to a terminal
// state no matter what fails along the way.
func (s *Service) run(jobID string, state *jobState, p provider.Provider, req Request) {
	ctx := context.Background()
	logger := s.logger.With("job_id", jobID)
	defer state.finish()

	emails := make([]models.Email, 0, len(req.EmailIDs))
	var preFailures []string
	for _, id := range req.EmailIDs {
		email, err := p.GetEmail(ctx, id)
		if err != nil {
			var authErr *provider.AuthError
			if errors.As(err, &authErr) {
				logger.Error("credential rejected while resolving emails", "error", err)
				s.recordFailure(jobID, req.SessionID, id, "", "auth-rejected", err)
				s.tracker.Fail(jobID, "credential expired or invalid")
				return
			}
			logger.Warn("failed to resolve email, skipping", "email_id", id, "error", err)
			s.recordFailure(jobID, req.SessionID, id, "", "email-unresolvable", err)
			preFailures = append(preFailures, id)
			continue
		}
		emails = append(emails, *email)
	}

	units := fetch.CollectUnits(emails)
	agg := NewAggregator(len(units), preFailures)
	state.setAggregator(agg)
	s.tracker.Begin(jobID, len(units))

	logger.Info("analysis job started",
		"emails", len(emails),
		"units", len(units),
		"session_id", req.SessionID,
	)

	if len(units) == 0 {
		s.tracker.Complete(jobID, "no PDF attachments found")
		return
	}

	fetcher := fetch.NewFetcher(p, s.cfg, logger)

	maxConcurrent := s.cfg.Analysis.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var fatal atomic.Bool
	for i, u := range units {
		wg.Add(1)
		go func(i int, u fetch.Unit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.processUnit(ctx, jobID, i, u, fetcher, agg, req.SessionID, &fatal, logger)
		}(i, u)
	}
	wg.Wait()

	result := agg.Result()
	if fatal.Load() {
		s.tracker.Fail(jobID, "credential expired during processing")
	} else {
		s.tracker.Complete(jobID, fmt.Sprintf("processed %d attachments", len(units)))
	}
	logger.Info("analysis job finished",
		"invoices", len(result.Invoices),
		"failed_files", len(result.FailedFiles),
		"fatal", fatal.Load(),
	)
}

// processUnit runs one fetch+parse unit. Whatever the outcome, exactly one
// slot is written and the tracker advances exactly once.
func (s *Service) processUnit(ctx context.Context, jobID string, i int, u fetch.Unit, fetcher *fetch.Fetcher, agg *Aggregator, sessionID string, fatal *atomic.Bool, logger *slog.Logger) {
	defer s.tracker.Advance(jobID, u.Ref.Filename)

	if fatal.Load() {
		agg.Fail(i, u.Ref.Filename)
		return
	}

	blob, err := fetcher.Fetch(ctx, u)
	if err != nil {
		reason := "fetch-failed"
		var authErr *provider.AuthError
		if errors.As(err, &authErr) {
			fatal.Store(true)
			reason = "auth-rejected"
		}
		logger.Warn("attachment fetch failed",
			"email_id", u.Email.ID,
			"filename", u.Ref.Filename,
			"error", err,
		)
		s.recordFailure(jobID, sessionID, u.Email.ID, u.Ref.Filename, reason, err)
		agg.Fail(i, u.Ref.Filename)
		return
	}

	if s.store != nil {
		data := append([]byte(nil), blob.Data...)
		filename := u.Ref.Filename
		go func() {
			if err := s.store.Save(sessionID, filename, data); err != nil {
				logger.Warn("failed to store artifact", "filename", filename, "error", err)
			}
		}()
	}

	unitCtx, cancel := context.WithTimeout(ctx, fetcher.UnitTimeout())
	defer cancel()

	rec, err := s.extractor.Extract(unitCtx, blob)
	if err != nil {
		reason := "extract-failed"
		var failure *extract.Failure
		if errors.As(err, &failure) {
			reason = failure.Reason
		}
		logger.Warn("extraction failed", "filename", u.Ref.Filename, "error", err)
		s.recordFailure(jobID, sessionID, u.Email.ID, u.Ref.Filename, reason, err)
		agg.Fail(i, u.Ref.Filename)
		return
	}

	rec.EmailSubject = u.Email.Subject
	rec.EmailSender = u.Email.Sender.Name
	rec.EmailDate = u.Email.Date.Format("2006-01-02")
	agg.Record(i, rec)
}
