package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/globaltime"
	"horse.fit/translator/internal/metrics"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

// DefaultInterval is the pause between two entries of one job.
const DefaultInterval = 5 * time.Second

// JobDeps are the collaborators shared by every job of a Manager.
type JobDeps struct {
	Jobs       JobStore
	Content    ContentStore
	Schemas    *schema.Registry
	Translator *Translator
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	// Interval defaults to DefaultInterval.
	Interval time.Duration
}

func (d JobDeps) validate() error {
	if d.Jobs == nil || d.Content == nil || d.Schemas == nil || d.Translator == nil {
		return fmt.Errorf("batch job dependencies are incomplete")
	}
	return nil
}

// Job translates the entries of one content type from a source into a target locale,
// one entry per tick. A Job instance runs at most once; resuming a record builds a new Job.
type Job struct {
	id           string
	contentType  *schema.ContentType
	sourceLocale string
	targetLocale string
	autoPublish  bool
	explicit     bool

	jobs       JobStore
	content    ContentStore
	translator *Translator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	interval   time.Duration

	// writeMu keeps status writes in the order the transitions were decided.
	writeMu sync.Mutex

	mu         sync.Mutex
	status     Status
	queue      []int64
	total      int64
	translated int64
	started    bool
	stopping   bool
	outcome    Outcome

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewJob builds a Job from its persisted record. It touches neither the store nor
// any timer, so a content type without localization fails here with no side effects.
func NewJob(record *db.BatchTranslateJob, deps JobDeps) (*Job, error) {
	if record == nil {
		return nil, fmt.Errorf("job record is nil")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	ct, err := deps.Schemas.Get(record.ContentType)
	if err != nil {
		return nil, err
	}
	if !ct.Localized {
		return nil, fmt.Errorf("%w: %s", ErrContentTypeNotLocalized, ct.UID)
	}
	status, err := ParseStatus(record.Status)
	if err != nil {
		return nil, err
	}
	ids, err := record.EntityIDList()
	if err != nil {
		return nil, err
	}

	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Job{
		id:           record.JobUUID,
		contentType:  ct,
		sourceLocale: record.SourceLocale,
		targetLocale: record.TargetLocale,
		autoPublish:  record.AutoPublish,
		explicit:     len(ids) > 0,
		jobs:         deps.Jobs,
		content:      deps.Content,
		translator:   deps.Translator,
		metrics:      deps.Metrics,
		logger: deps.Logger.With().
			Str("job_id", record.JobUUID).
			Str("content_type", ct.UID).
			Str("source_locale", record.SourceLocale).
			Str("target_locale", record.TargetLocale).
			Logger(),
		interval: interval,
		status:   status,
		queue:    append([]int64(nil), ids...),
		total:    int64(len(ids)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Counts returns the entries translated so far and the current total.
func (j *Job) Counts() (translated, total int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.translated, j.total
}

func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progressLocked()
}

func (j *Job) progressLocked() float64 {
	if j.total <= 0 {
		return 0
	}
	progress := float64(j.translated) / float64(j.total)
	if progress > 1 {
		return 1
	}
	return progress
}

// Done is closed once the job has stopped for good.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Outcome is meaningful once Done is closed.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Wait blocks until the job stops or ctx ends.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Start launches the run loop. A fresh start needs a created record; a resume
// accepts created, setup, running and paused records. Setup runs asynchronously.
func (j *Job) Start(ctx context.Context, resume bool) error {
	j.mu.Lock()
	if j.started || j.stopping {
		j.mu.Unlock()
		return fmt.Errorf("%w: job %s cannot be started twice", ErrInvalidJobState, j.id)
	}
	if !startAllowed(j.status, resume) {
		status := j.status
		j.mu.Unlock()
		mode := "start"
		if resume {
			mode = "resume"
		}
		return fmt.Errorf("%w: cannot %s job %s in status %s", ErrInvalidJobState, mode, j.id, status)
	}
	j.started = true
	j.mu.Unlock()

	j.metrics.JobStarted(resume)
	j.logger.Info().Bool("resume", resume).Dur("interval", j.interval).Msg("batch translate job started")

	go j.run(context.WithoutCancel(ctx))
	return nil
}

func startAllowed(status Status, resume bool) bool {
	if !resume {
		return status == StatusCreated
	}
	switch status {
	case StatusRunning, StatusCreated, StatusSetup, StatusPaused:
		return true
	default:
		return false
	}
}

// Pause stops the job after any in-flight entry. With setStatus false the record keeps
// its active status so the next process start resumes it.
func (j *Job) Pause(ctx context.Context, setStatus bool) error {
	halted, err := j.halt(ctx, OutcomePaused, StatusPaused, setStatus)
	if halted {
		j.logger.Info().Bool("persisted", setStatus).Msg("batch translate job paused")
	}
	return err
}

// Cancel stops the job for good.
func (j *Job) Cancel(ctx context.Context) error {
	halted, err := j.halt(ctx, OutcomeCancelled, StatusCancelled, true)
	if halted {
		j.logger.Info().Msg("batch translate job cancelled")
	}
	return err
}

// halt is a no-op for a job that is already stopped or stopping.
func (j *Job) halt(ctx context.Context, kind OutcomeKind, to Status, persist bool) (bool, error) {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	from := j.currentLocked()
	if j.stopping || from.IsStopped() {
		j.mu.Unlock()
		return false, nil
	}
	j.stopping = true
	j.outcome = Outcome{Kind: kind}
	started := j.started
	j.mu.Unlock()

	j.stopLoop(started)
	if !persist {
		return true, nil
	}
	if err := ValidateTransition(from, to); err != nil {
		return true, err
	}
	status := string(to)
	if _, err := j.jobs.UpdateJob(ctx, j.id, db.JobUpdate{Status: &status}); err != nil {
		return true, fmt.Errorf("persist job %s status %s: %w", j.id, to, err)
	}
	j.mu.Lock()
	j.status = to
	j.mu.Unlock()
	return true, nil
}

// currentLocked is the status stop decisions work from. A started resume of a paused
// record is on its way to setup, so it can still be paused or cancelled.
func (j *Job) currentLocked() Status {
	if j.started && j.status == StatusPaused {
		return StatusSetup
	}
	return j.status
}

func (j *Job) stopLoop(started bool) {
	j.stopOnce.Do(func() {
		close(j.stop)
		if !started {
			close(j.done)
		}
	})
}

func (j *Job) run(ctx context.Context) {
	defer j.settle()

	if !j.setup(ctx) {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if j.translateOne(ctx) {
				return
			}
		}
	}
}

func (j *Job) settle() {
	outcome := j.Outcome()
	j.metrics.JobSettled(string(outcome.Kind))
	close(j.done)
}

// transition persists a status change unless a pause or cancel got there first.
func (j *Job) transition(ctx context.Context, to Status, update db.JobUpdate) error {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	if j.stopping {
		j.mu.Unlock()
		return errStopping
	}
	from := j.status
	if from == to {
		j.mu.Unlock()
		return nil
	}
	if err := ValidateTransition(from, to); err != nil {
		j.mu.Unlock()
		return err
	}
	j.mu.Unlock()

	status := string(to)
	update.Status = &status
	if _, err := j.jobs.UpdateJob(ctx, j.id, update); err != nil {
		return fmt.Errorf("persist job %s status %s: %w", j.id, to, err)
	}

	j.mu.Lock()
	j.status = to
	j.mu.Unlock()
	j.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("job status changed")
	return nil
}

// setup seeds the progress counters and moves the job to running.
func (j *Job) setup(ctx context.Context) bool {
	if err := j.transition(ctx, StatusSetup, db.JobUpdate{}); err != nil {
		if !errors.Is(err, errStopping) {
			j.fail(ctx, 0, err)
		}
		return false
	}

	if j.explicit {
		if err := j.seedExplicit(ctx); err != nil {
			j.fail(ctx, 0, err)
			return false
		}
	} else {
		total, err := j.content.CountEntries(ctx, db.EntryFilter{
			ContentType: j.contentType.UID,
			Locale:      j.sourceLocale,
		})
		if err != nil {
			j.fail(ctx, 0, fmt.Errorf("count source entries: %w", err))
			return false
		}
		translated, err := j.content.CountEntries(ctx, db.EntryFilter{
			ContentType: j.contentType.UID,
			Locale:      j.sourceLocale,
			HasLocale:   j.targetLocale,
		})
		if err != nil {
			j.fail(ctx, 0, fmt.Errorf("count translated entries: %w", err))
			return false
		}
		j.mu.Lock()
		j.total, j.translated = total, translated
		j.mu.Unlock()
	}

	j.mu.Lock()
	proceed := j.status == StatusSetup && !j.stopping
	progress := j.progressLocked()
	translated, total := j.translated, j.total
	j.mu.Unlock()
	if !proceed {
		return false
	}

	if err := j.transition(ctx, StatusRunning, db.JobUpdate{Progress: &progress}); err != nil {
		if !errors.Is(err, errStopping) {
			j.fail(ctx, 0, err)
		}
		return false
	}
	j.logger.Info().
		Bool("explicit_ids", j.explicit).
		Int64("translated", translated).
		Int64("total", total).
		Msg("batch translate job running")
	return true
}

// seedExplicit drops ids that are not source entries and counts the ones that already
// have a target localization as translated, so a resumed job keeps its progress.
func (j *Job) seedExplicit(ctx context.Context) error {
	j.mu.Lock()
	ids := append([]int64(nil), j.queue...)
	j.mu.Unlock()

	pending := make([]int64, 0, len(ids))
	var dropped, done int64
	for _, id := range ids {
		if id <= 0 {
			j.logger.Warn().Int64("entity_id", id).Msg("skipping entity that is not in the source locale")
			dropped++
			continue
		}
		filter := db.EntryFilter{ContentType: j.contentType.UID, ID: id, Locale: j.sourceLocale}
		exists, err := j.content.CountEntries(ctx, filter)
		if err != nil {
			return fmt.Errorf("count entity %d: %w", id, err)
		}
		if exists == 0 {
			j.logger.Warn().Int64("entity_id", id).Msg("skipping entity that is not in the source locale")
			dropped++
			continue
		}
		filter.HasLocale = j.targetLocale
		localized, err := j.content.CountEntries(ctx, filter)
		if err != nil {
			return fmt.Errorf("count entity %d localizations: %w", id, err)
		}
		if localized > 0 {
			done++
			continue
		}
		pending = append(pending, id)
	}

	j.mu.Lock()
	j.queue = pending
	j.total = int64(len(ids)) - dropped
	j.translated = done
	j.mu.Unlock()
	return nil
}

// translateOne handles one tick and reports whether the run loop is over.
func (j *Job) translateOne(ctx context.Context) bool {
	j.mu.Lock()
	if j.status != StatusRunning || j.stopping {
		j.mu.Unlock()
		return false
	}
	reached := j.translated >= j.total
	j.mu.Unlock()
	if reached {
		j.finish(ctx)
		return true
	}

	entry, err := j.nextEntry(ctx)
	if err != nil {
		j.fail(ctx, 0, err)
		return true
	}
	if entry == nil {
		j.finish(ctx)
		return true
	}

	if err := j.translateEntry(ctx, entry); err != nil {
		j.fail(ctx, entry.ID, err)
		return true
	}

	j.mu.Lock()
	j.translated++
	progress := j.progressLocked()
	j.mu.Unlock()
	j.metrics.EntryTranslated(j.contentType.UID, "batch")

	if _, err := j.jobs.UpdateJob(ctx, j.id, db.JobUpdate{Progress: &progress}); err != nil {
		j.logger.Warn().Err(err).Float64("progress", progress).Msg("failed to persist job progress")
	}
	return false
}

// nextEntry returns the next source entry without a target localization, or nil.
func (j *Job) nextEntry(ctx context.Context) (*db.Entry, error) {
	if !j.explicit {
		entry, err := j.content.FindEntry(ctx, db.EntryFilter{
			ContentType:   j.contentType.UID,
			Locale:        j.sourceLocale,
			MissingLocale: j.targetLocale,
		})
		if db.IsNoRows(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find untranslated entry: %w", err)
		}
		return entry, nil
	}

	for {
		j.mu.Lock()
		if len(j.queue) == 0 {
			j.mu.Unlock()
			return nil, nil
		}
		id := j.queue[0]
		j.queue = j.queue[1:]
		j.mu.Unlock()

		var entry *db.Entry
		err := db.ErrNoRows
		if id > 0 {
			entry, err = j.content.FindEntry(ctx, db.EntryFilter{
				ContentType:   j.contentType.UID,
				ID:            id,
				Locale:        j.sourceLocale,
				MissingLocale: j.targetLocale,
			})
		}
		if db.IsNoRows(err) {
			j.logger.Warn().Int64("entity_id", id).Msg("skipping entity that is not in the source locale or is already translated")
			j.mu.Lock()
			j.total--
			j.mu.Unlock()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load entity %d: %w", id, err)
		}
		return entry, nil
	}
}

func (j *Job) translateEntry(ctx context.Context, source *db.Entry) error {
	data, err := source.DecodeData()
	if err != nil {
		return err
	}
	translated, err := j.translator.translate(ctx, j.contentType, data, j.sourceLocale, j.targetLocale, translation.PriorityBatch, "")
	if err != nil {
		return err
	}
	raw, err := db.EncodeData(translated)
	if err != nil {
		return err
	}

	created, err := j.content.CreateEntry(ctx, &db.Entry{
		ContentType: j.contentType.UID,
		GroupID:     source.GroupID,
		Locale:      j.targetLocale,
		Data:        raw,
	})
	if err != nil {
		return fmt.Errorf("create %s localization of entity %d: %w", j.targetLocale, source.ID, err)
	}
	if j.autoPublish {
		if err := j.content.PublishEntry(ctx, created.ID, globaltime.UTC()); err != nil {
			return fmt.Errorf("publish entry %d: %w", created.ID, err)
		}
	}

	j.logger.Debug().Int64("entity_id", source.ID).Int64("created_id", created.ID).Msg("entity translated")
	return nil
}

func (j *Job) finish(ctx context.Context) {
	progress := 1.0
	err := j.transition(ctx, StatusFinished, db.JobUpdate{Progress: &progress})
	if errors.Is(err, errStopping) {
		return
	}
	if err != nil {
		j.fail(ctx, 0, err)
		return
	}

	j.mu.Lock()
	j.stopping = true
	j.outcome = Outcome{Kind: OutcomeFinished}
	translated := j.translated
	j.mu.Unlock()
	j.stopLoop(true)
	j.logger.Info().Int64("translated", translated).Msg("batch translate job finished")
}

// fail records the failure unless the job was paused or cancelled meanwhile.
func (j *Job) fail(ctx context.Context, entityID int64, cause error) {
	reason := &db.FailureReason{EntityID: entityID, Message: cause.Error()}

	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	if j.stopping {
		j.mu.Unlock()
		j.logger.Warn().Err(cause).Int64("entity_id", entityID).Msg("job stopped while an entity was in flight; failure not recorded")
		return
	}
	j.stopping = true
	j.outcome = Outcome{Kind: OutcomeFailed, Failure: reason}
	j.mu.Unlock()
	j.stopLoop(true)

	status := string(StatusFailed)
	if _, err := j.jobs.UpdateJob(ctx, j.id, db.JobUpdate{Status: &status, FailureReason: reason}); err != nil {
		j.logger.Error().Err(err).Msg("failed to persist job failure")
	} else {
		j.mu.Lock()
		j.status = StatusFailed
		j.mu.Unlock()
	}
	j.logger.Error().Err(cause).Int64("entity_id", entityID).Msg("batch translate job failed")
}
