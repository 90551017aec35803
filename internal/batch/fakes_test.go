package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

const (
	articleType = "api::article.article"
	authorType  = "api::author.author"
)

const articleDefinition = `{
  "uid": "api::article.article",
  "displayName": "Article",
  "kind": "collectionType",
  "localized": true,
  "attributes": {
    "title": {"type": "string"},
    "slug": {"type": "uid", "targetField": "title"},
    "views": {"type": "integer"}
  }
}`

const authorDefinition = `{
  "uid": "api::author.author",
  "displayName": "Author",
  "kind": "collectionType",
  "localized": false,
  "attributes": {
    "name": {"type": "string"}
  }
}`

type fakeJobStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*db.BatchTranslateJob
	order   []string
	updates map[string][]db.JobUpdate
	creates int
	// holdStatus makes writes of that status wait until hold is closed.
	holdStatus string
	hold       chan struct{}
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		records: map[string]*db.BatchTranslateJob{},
		updates: map[string][]db.JobUpdate{},
	}
}

func (s *fakeJobStore) CreateJob(_ context.Context, job *db.BatchTranslateJob) (*db.BatchTranslateJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		existing := s.records[id]
		if existing.ContentType == job.ContentType &&
			existing.SourceLocale == job.SourceLocale &&
			existing.TargetLocale == job.TargetLocale &&
			Status(existing.Status).IsActive() &&
			Status(job.Status).IsActive() {
			return nil, fmt.Errorf("insert job: %w", errDuplicateKey)
		}
	}

	s.nextID++
	record := *job
	record.ID = s.nextID
	if record.JobUUID == "" {
		record.JobUUID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = string(StatusCreated)
	}
	s.records[record.JobUUID] = &record
	s.order = append(s.order, record.JobUUID)
	s.creates++
	out := record
	return &out, nil
}

// seed stores a record without counting it as a create.
func (s *fakeJobStore) seed(record db.BatchTranslateJob) *db.BatchTranslateJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	if record.JobUUID == "" {
		record.JobUUID = uuid.NewString()
	}
	s.records[record.JobUUID] = &record
	s.order = append(s.order, record.JobUUID)
	out := record
	return &out
}

func (s *fakeJobStore) FindJobs(_ context.Context, filter db.JobFilter) ([]db.BatchTranslateJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []db.BatchTranslateJob
	for _, id := range s.order {
		record := s.records[id]
		if filter.ContentType != "" && record.ContentType != filter.ContentType {
			continue
		}
		if filter.SourceLocale != "" && record.SourceLocale != filter.SourceLocale {
			continue
		}
		if filter.TargetLocale != "" && record.TargetLocale != filter.TargetLocale {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, record.Status) {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *fakeJobStore) FindJob(_ context.Context, jobUUID string) (*db.BatchTranslateJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobUUID]
	if !ok {
		return nil, db.ErrNoRows
	}
	out := *record
	return &out, nil
}

func (s *fakeJobStore) UpdateJob(ctx context.Context, jobUUID string, update db.JobUpdate) (*db.BatchTranslateJob, error) {
	s.mu.Lock()
	hold := s.hold
	if update.Status == nil || *update.Status != s.holdStatus {
		hold = nil
	}
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobUUID]
	if !ok {
		return nil, db.ErrNoRows
	}
	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Progress != nil {
		record.Progress = *update.Progress
	}
	if update.FailureReason != nil {
		raw, err := json.Marshal(update.FailureReason)
		if err != nil {
			return nil, err
		}
		record.FailureReason = raw
	}
	s.updates[jobUUID] = append(s.updates[jobUUID], update)
	out := *record
	return &out, nil
}

// holdWrites delays persisting status until the returned release func runs.
func (s *fakeJobStore) holdWrites(status string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hold := make(chan struct{})
	s.holdStatus, s.hold = status, hold
	var once sync.Once
	return func() { once.Do(func() { close(hold) }) }
}

func (s *fakeJobStore) record(jobUUID string) db.BatchTranslateJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[jobUUID]
}

func (s *fakeJobStore) mutations(jobUUID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates[jobUUID])
}

// statuses lists the persisted status changes of a job in write order.
func (s *fakeJobStore) statuses(jobUUID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, update := range s.updates[jobUUID] {
		if update.Status != nil {
			out = append(out, *update.Status)
		}
	}
	return out
}

// progressAt returns the progress written together with the first change to status.
func (s *fakeJobStore) progressAt(jobUUID, status string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, update := range s.updates[jobUUID] {
		if update.Status != nil && *update.Status == status && update.Progress != nil {
			return *update.Progress, true
		}
	}
	return 0, false
}

func (s *fakeJobStore) createCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

var errDuplicateKey = gorm.ErrDuplicatedKey

type fakeContentStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []db.Entry
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{}
}

func (s *fakeContentStore) add(t *testing.T, contentType, locale, groupID string, data map[string]any) db.Entry {
	t.Helper()
	raw, err := db.EncodeData(data)
	if err != nil {
		t.Fatalf("encode entry: %v", err)
	}
	created, err := s.CreateEntry(context.Background(), &db.Entry{
		ContentType: contentType,
		Locale:      locale,
		GroupID:     groupID,
		Data:        raw,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return *created
}

func (s *fakeContentStore) hasLocaleLocked(entry db.Entry, locale string) bool {
	for _, other := range s.entries {
		if other.ContentType == entry.ContentType && other.GroupID == entry.GroupID && other.Locale == locale {
			return true
		}
	}
	return false
}

func (s *fakeContentStore) matchLocked(entry db.Entry, filter db.EntryFilter) bool {
	if filter.ContentType != "" && entry.ContentType != filter.ContentType {
		return false
	}
	if filter.Locale != "" && entry.Locale != filter.Locale {
		return false
	}
	if filter.ID > 0 && entry.ID != filter.ID {
		return false
	}
	if filter.GroupID != "" && entry.GroupID != filter.GroupID {
		return false
	}
	if filter.MissingLocale != "" && s.hasLocaleLocked(entry, filter.MissingLocale) {
		return false
	}
	if filter.HasLocale != "" && !s.hasLocaleLocked(entry, filter.HasLocale) {
		return false
	}
	return true
}

func (s *fakeContentStore) CountEntries(_ context.Context, filter db.EntryFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, entry := range s.entries {
		if s.matchLocked(entry, filter) {
			count++
		}
	}
	return count, nil
}

func (s *fakeContentStore) FindEntry(_ context.Context, filter db.EntryFilter) (*db.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if s.matchLocked(entry, filter) {
			out := entry
			return &out, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *fakeContentStore) CreateEntry(_ context.Context, entry *db.Entry) (*db.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.GroupID == "" {
		entry.GroupID = uuid.NewString()
	}
	for _, other := range s.entries {
		if other.ContentType == entry.ContentType && other.GroupID == entry.GroupID && other.Locale == entry.Locale {
			return nil, fmt.Errorf("insert entry: %w", errDuplicateKey)
		}
	}
	s.nextID++
	entry.ID = s.nextID
	s.entries = append(s.entries, *entry)
	out := *entry
	return &out, nil
}

func (s *fakeContentStore) PublishEntry(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			published := at
			s.entries[i].PublishedAt = &published
			return nil
		}
	}
	return db.ErrNoRows
}

func (s *fakeContentStore) FindLocalizationID(_ context.Context, contentType string, id int64, locale string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, source := range s.entries {
		if source.ContentType != contentType || source.ID != id {
			continue
		}
		for _, other := range s.entries {
			if other.ContentType == contentType && other.GroupID == source.GroupID && other.Locale == locale {
				return other.ID, true, nil
			}
		}
	}
	return 0, false, nil
}

func (s *fakeContentStore) UIDExists(_ context.Context, contentType, field, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.ContentType != contentType {
			continue
		}
		data, err := entry.DecodeData()
		if err != nil {
			return false, err
		}
		if current, _ := data[field].(string); current == value {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeContentStore) localized(contentType, locale string) []db.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Entry
	for _, entry := range s.entries {
		if entry.ContentType == contentType && entry.Locale == locale {
			out = append(out, entry)
		}
	}
	return out
}

// stubProvider prefixes every text with the target locale.
type stubProvider struct {
	mu         sync.Mutex
	calls      int
	priorities []translation.Priority
	sources    []string
	failOn     int
	inFlight   chan struct{}
	release    chan struct{}
}

func (p *stubProvider) Name() string {
	return "stub"
}

func (p *stubProvider) Translate(ctx context.Context, req translation.TranslateRequest) ([]string, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.priorities = append(p.priorities, req.Priority)
	p.sources = append(p.sources, req.SourceLocale)
	inFlight, release := p.inFlight, p.release
	p.mu.Unlock()

	if inFlight != nil {
		select {
		case inFlight <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.failOn > 0 && call == p.failOn {
		return nil, errors.New("provider quota exceeded")
	}

	out := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = req.TargetLocale + ":" + text
	}
	return out, nil
}

func (p *stubProvider) Usage(context.Context) (*translation.Usage, error) {
	return &translation.Usage{}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	jobs     *fakeJobStore
	content  *fakeContentStore
	provider *stubProvider
	deps     JobDeps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	schemas := schema.NewRegistry()
	for _, definition := range []string{articleDefinition, authorDefinition} {
		if _, err := schemas.Register([]byte(definition)); err != nil {
			t.Fatalf("register definition: %v", err)
		}
	}
	resolver := schema.NewResolver(schemas, schema.Options{
		FieldTypes:         []string{"string", "text"},
		TranslateRelations: true,
		RegenerateUIDs:     true,
	})

	provider := &stubProvider{}
	providers := translation.NewRegistry("stub")
	if err := providers.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	jobs := newFakeJobStore()
	content := newFakeContentStore()
	return &harness{
		jobs:     jobs,
		content:  content,
		provider: provider,
		deps: JobDeps{
			Jobs:       jobs,
			Content:    content,
			Schemas:    schemas,
			Translator: NewTranslator(resolver, translation.NewEntityTranslator(providers, nil), content),
			Logger:     zerolog.Nop(),
			Interval:   time.Millisecond,
		},
	}
}

func (h *harness) manager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(h.deps)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Destroy(ctx)
	})
	return manager
}

func (h *harness) seedArticles(t *testing.T, locale string, titles ...string) []db.Entry {
	t.Helper()
	entries := make([]db.Entry, 0, len(titles))
	for _, title := range titles {
		entries = append(entries, h.content.add(t, articleType, locale, "", map[string]any{
			"title": title,
			"slug":  strings.ToLower(title),
		}))
	}
	return entries
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitOutcome(t *testing.T, job *Job) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	outcome, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return outcome
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
