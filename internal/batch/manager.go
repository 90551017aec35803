package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/language"
)

// Manager owns the jobs running in this process.
type Manager struct {
	deps   JobDeps
	logger zerolog.Logger

	// submitMu serialises the active-job check with the insert that follows it.
	submitMu sync.Mutex

	mu      sync.Mutex
	running map[string]*registration
}

type registration struct {
	job     *Job
	evicted chan struct{}
}

func NewManager(deps JobDeps) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		deps:    deps,
		logger:  deps.Logger.With().Str("component", "batch_manager").Logger(),
		running: map[string]*registration{},
	}, nil
}

type SubmitParams struct {
	ContentType  string
	SourceLocale string
	TargetLocale string
	// EntityIDs limits the job to these source entries. Empty means every untranslated entry.
	EntityIDs   []int64
	AutoPublish bool
}

// SubmitJob creates a job record and starts it. The record is returned as soon as the
// job is running in the background; callers poll GetJob for progress.
func (m *Manager) SubmitJob(ctx context.Context, params SubmitParams) (*db.BatchTranslateJob, error) {
	contentType := strings.TrimSpace(params.ContentType)
	source := language.NormalizeTag(params.SourceLocale)
	target := language.NormalizeTag(params.TargetLocale)
	if contentType == "" {
		return nil, fmt.Errorf("%w: content type is required", ErrInvalidJobParams)
	}
	if source == "" || target == "" {
		return nil, fmt.Errorf("%w: source and target locales are required", ErrInvalidJobParams)
	}
	ct, err := m.deps.Schemas.Get(contentType)
	if err != nil {
		return nil, err
	}
	if !ct.Localized {
		return nil, fmt.Errorf("%w: %s", ErrContentTypeNotLocalized, ct.UID)
	}
	entityIDs, err := db.EncodeEntityIDs(params.EntityIDs)
	if err != nil {
		return nil, err
	}

	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	if err := m.ensureNoActiveJob(ctx, ct.UID, source, target, ""); err != nil {
		return nil, err
	}

	record, err := m.deps.Jobs.CreateJob(ctx, &db.BatchTranslateJob{
		ContentType:  ct.UID,
		SourceLocale: source,
		TargetLocale: target,
		EntityIDs:    entityIDs,
		AutoPublish:  params.AutoPublish,
		Status:       string(StatusCreated),
	})
	if db.IsDuplicate(err) {
		return nil, fmt.Errorf("%w: %s %s -> %s", ErrJobAlreadyExists, ct.UID, source, target)
	}
	if err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	if _, err := m.start(ctx, record, false); err != nil {
		m.abandon(ctx, record, err)
		return nil, err
	}
	return record, nil
}

func (m *Manager) ensureNoActiveJob(ctx context.Context, contentType, source, target, exceptID string) error {
	active, err := m.deps.Jobs.FindJobs(ctx, db.JobFilter{
		ContentType:  contentType,
		SourceLocale: source,
		TargetLocale: target,
		Statuses:     statusStrings(ActiveStatuses),
	})
	if err != nil {
		return fmt.Errorf("check active jobs: %w", err)
	}
	for _, job := range active {
		if job.JobUUID != exceptID {
			return fmt.Errorf("%w: job %s is %s", ErrJobAlreadyExists, job.JobUUID, job.Status)
		}
	}
	return nil
}

// abandon fails a record that could not be started so it stops blocking its scope.
func (m *Manager) abandon(ctx context.Context, record *db.BatchTranslateJob, cause error) {
	status := string(StatusFailed)
	reason := &db.FailureReason{Message: cause.Error()}
	if _, err := m.deps.Jobs.UpdateJob(ctx, record.JobUUID, db.JobUpdate{Status: &status, FailureReason: reason}); err != nil {
		m.logger.Error().Err(err).Str("job_id", record.JobUUID).Msg("failed to mark unstartable job as failed")
	}
}

// Bootstrap resumes every job left running by a previous process.
func (m *Manager) Bootstrap(ctx context.Context) (int, error) {
	records, err := m.deps.Jobs.FindJobs(ctx, db.JobFilter{Statuses: []string{string(StatusRunning)}})
	if err != nil {
		return 0, fmt.Errorf("find running jobs: %w", err)
	}
	resumed := 0
	for i := range records {
		record := &records[i]
		if _, err := m.start(ctx, record, true); err != nil {
			m.logger.Error().Err(err).Str("job_id", record.JobUUID).Msg("failed to resume job on startup")
			continue
		}
		resumed++
	}
	if resumed > 0 {
		m.logger.Info().Int("jobs", resumed).Msg("resumed batch translate jobs")
	}
	return resumed, nil
}

// ResumeJob restarts a running or paused record that has no Job in this process.
func (m *Manager) ResumeJob(ctx context.Context, jobID string) (*db.BatchTranslateJob, error) {
	if m.IsRunning(jobID) {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, jobID)
	}

	m.submitMu.Lock()
	defer m.submitMu.Unlock()

	record, err := m.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(record.Status)
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusRunning:
	case StatusPaused:
		if err := m.ensureNoActiveJob(ctx, record.ContentType, record.SourceLocale, record.TargetLocale, record.JobUUID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot resume job %s in status %s", ErrInvalidJobState, jobID, status)
	}

	if _, err := m.start(ctx, record, true); err != nil {
		return nil, err
	}
	return record, nil
}

func (m *Manager) start(ctx context.Context, record *db.BatchTranslateJob, resume bool) (*Job, error) {
	if m.IsRunning(record.JobUUID) {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, record.JobUUID)
	}
	job, err := NewJob(record, m.deps)
	if err != nil {
		return nil, err
	}
	if err := job.Start(ctx, resume); err != nil {
		return nil, err
	}
	m.register(job)
	return job, nil
}

// register tracks job until it stops, whatever the outcome.
func (m *Manager) register(job *Job) {
	reg := &registration{job: job, evicted: make(chan struct{})}

	m.mu.Lock()
	m.running[job.ID()] = reg
	count := len(m.running)
	m.mu.Unlock()
	m.deps.Metrics.SetRunningJobs(count)

	go func() {
		<-job.Done()

		m.mu.Lock()
		if m.running[job.ID()] == reg {
			delete(m.running, job.ID())
		}
		count := len(m.running)
		m.mu.Unlock()
		m.deps.Metrics.SetRunningJobs(count)

		outcome := job.Outcome()
		event := m.logger.Info()
		if outcome.Kind == OutcomeFailed {
			event = m.logger.Warn()
		}
		event.Str("job_id", job.ID()).Str("outcome", outcome.String()).Msg("batch translate job settled")
		close(reg.evicted)
	}()
}

func (m *Manager) lookup(jobID string) *registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[jobID]
}

func (m *Manager) PauseJob(ctx context.Context, jobID string) error {
	reg := m.lookup(jobID)
	if reg == nil {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, jobID)
	}
	return reg.job.Pause(ctx, true)
}

func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	reg := m.lookup(jobID)
	if reg == nil {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, jobID)
	}
	return reg.job.Cancel(ctx)
}

// WaitJob blocks until the job has stopped and left the running table.
func (m *Manager) WaitJob(ctx context.Context, jobID string) (Outcome, error) {
	reg := m.lookup(jobID)
	if reg == nil {
		return Outcome{}, fmt.Errorf("%w: %s", ErrJobNotRunning, jobID)
	}
	select {
	case <-reg.evicted:
		return reg.job.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Destroy pauses every running job without touching its record, so the next
// Bootstrap picks it up again, and waits for the jobs to stop.
func (m *Manager) Destroy(ctx context.Context) error {
	m.mu.Lock()
	regs := make([]*registration, 0, len(m.running))
	for _, reg := range m.running {
		regs = append(regs, reg)
	}
	m.mu.Unlock()

	for _, reg := range regs {
		if err := reg.job.Pause(ctx, false); err != nil {
			m.logger.Error().Err(err).Str("job_id", reg.job.ID()).Msg("failed to pause job on shutdown")
			continue
		}
		m.logger.Info().Str("job_id", reg.job.ID()).Msg("job paused for shutdown; it resumes on restart")
	}
	for _, reg := range regs {
		select {
		case <-reg.evicted:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) GetJob(ctx context.Context, jobID string) (*db.BatchTranslateJob, error) {
	record, err := m.deps.Jobs.FindJob(ctx, strings.TrimSpace(jobID))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *Manager) ListJobs(ctx context.Context, filter db.JobFilter) ([]db.BatchTranslateJob, error) {
	return m.deps.Jobs.FindJobs(ctx, filter)
}

func (m *Manager) IsRunning(jobID string) bool {
	return m.lookup(jobID) != nil
}

// RunningJobs lists the ids of jobs registered in this process.
func (m *Manager) RunningJobs() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Translator exposes the pipeline shared with the jobs for one-off translations.
func (m *Manager) Translator() *Translator {
	return m.deps.Translator
}
