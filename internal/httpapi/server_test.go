package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/db/dbtest"
	"horse.fit/translator/internal/metrics"
	"horse.fit/translator/internal/report"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
	"horse.fit/translator/internal/updates"
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

// prefixProvider marks every text with the target locale.
type prefixProvider struct{}

func (prefixProvider) Name() string { return "prefix" }

func (prefixProvider) Translate(_ context.Context, req translation.TranslateRequest) ([]string, error) {
	out := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = req.TargetLocale + ":" + text
	}
	return out, nil
}

func (prefixProvider) Usage(context.Context) (*translation.Usage, error) {
	return &translation.Usage{Count: 12, Limit: 1000}, nil
}

type fixture struct {
	pool    *db.Pool
	jobs    *batch.Manager
	handler http.Handler
	token   string
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newFixture(t *testing.T, interval time.Duration, tokenHash string) *fixture {
	t.Helper()

	pool := dbtest.Open(t)
	schemas := schema.NewRegistry()
	for _, definition := range []string{articleDefinition, authorDefinition} {
		_, err := schemas.Register([]byte(definition))
		require.NoError(t, err)
	}
	resolver := schema.NewResolver(schemas, schema.Options{FieldTypes: []string{"string", "text"}})

	providers := translation.NewRegistry("prefix")
	require.NoError(t, providers.Register(prefixProvider{}))
	m := metrics.New()
	entities := translation.NewEntityTranslator(providers, m)
	translator := batch.NewTranslator(resolver, entities, pool)

	logger := zerolog.Nop()
	jobs, err := batch.NewManager(batch.JobDeps{
		Jobs:       pool,
		Content:    pool,
		Schemas:    schemas,
		Translator: translator,
		Metrics:    m,
		Logger:     logger,
		Interval:   interval,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = jobs.Destroy(ctx)
	})

	locales := []string{"en", "de"}
	server := NewServer(Services{
		Jobs:     jobs,
		Entities: entities,
		Updates:  updates.NewService(pool, schemas, translator, m, logger),
		Tracker:  updates.NewTracker(pool, schemas, nil, logger),
		Report:   report.NewService(pool, schemas, locales),
		Content:  pool,
		Schemas:  schemas,
		Metrics:  m,
	}, logger, Options{AdminTokenHash: tokenHash, Locales: locales})

	return &fixture{pool: pool, jobs: jobs, handler: server.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (f *fixture) waitStatus(t *testing.T, jobID, status string) jobResponse {
	t.Helper()
	var last jobResponse
	require.Eventually(t, func() bool {
		_, env := f.do(t, http.MethodGet, "/api/v1/batch-translate/jobs/"+jobID, nil)
		last = decodeData[jobResponse](t, env)
		return last.Status == status
	}, 3*time.Second, 5*time.Millisecond, "job %s never reached %s", jobID, status)
	return last
}

func TestHealth(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, env := f.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
	data := decodeData[map[string]any](t, env)
	assert.Equal(t, "translator", data["service"])
}

func TestRequireToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	f := newFixture(t, time.Millisecond, string(hash))

	rec, env := f.do(t, http.MethodGet, "/api/v1/locales", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	f.token = "wrong"
	rec, _ = f.do(t, http.MethodGet, "/api/v1/locales", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.token = "letmein"
	rec, env = f.do(t, http.MethodGet, "/api/v1/locales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData[map[string][]translation.LocaleOption](t, env)
	require.Len(t, data["items"], 2)
	assert.Equal(t, "German", data["items"][1].Label)

	f.token = ""
	rec, _ = f.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTranslateEndpoint(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, env := f.do(t, http.MethodPost, "/api/v1/translate", map[string]any{
		"contentType":  articleType,
		"sourceLocale": "en",
		"targetLocale": "de",
		"data":         map[string]any{"title": "Hello", "views": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData[map[string]map[string]any](t, env)
	assert.Equal(t, "de:Hello", data["data"]["title"])
	assert.EqualValues(t, 3, data["data"]["views"])

	rec, env = f.do(t, http.MethodPost, "/api/v1/translate", map[string]any{
		"contentType": articleType,
		"data":        map[string]any{"title": "Hello"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "targetLocale")

	rec, _ = f.do(t, http.MethodPost, "/api/v1/translate", map[string]any{
		"contentType":  "api::missing.missing",
		"targetLocale": "de",
		"data":         map[string]any{},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsageEndpoint(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, env := f.do(t, http.MethodGet, "/api/v1/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usageResponse{Provider: "prefix", Count: 12, Limit: 1000, Supported: true}, decodeData[usageResponse](t, env))

	rec, env = f.do(t, http.MethodGet, "/api/v1/usage?provider=google", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "unknown translation provider")
}

func TestBatchTranslateRunsToCompletion(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")
	dbtest.SeedEntry(t, f.pool, articleType, "en", "", map[string]any{"title": "One"})
	dbtest.SeedEntry(t, f.pool, articleType, "en", "", map[string]any{"title": "Two"})

	rec, env := f.do(t, http.MethodPost, "/api/v1/batch-translate", map[string]any{
		"contentType":  articleType,
		"sourceLocale": "en",
		"targetLocale": "de",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	submitted := decodeData[jobResponse](t, env)
	require.NotEmpty(t, submitted.ID)

	finished := f.waitStatus(t, submitted.ID, "finished")
	assert.Equal(t, 1.0, finished.Progress)
	require.Eventually(t, func() bool { return !f.jobs.IsRunning(submitted.ID) }, time.Second, 5*time.Millisecond)

	german, err := f.pool.ListEntries(context.Background(), db.EntryFilter{ContentType: articleType, Locale: "de"}, db.EntryPage{})
	require.NoError(t, err)
	require.Len(t, german, 2)
	data, err := german[0].DecodeData()
	require.NoError(t, err)
	assert.Equal(t, "de:One", data["title"])

	rec, env = f.do(t, http.MethodGet, "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decodeData[struct {
		ContentTypes []report.ContentTypeReport `json:"contentTypes"`
	}](t, env)
	require.Len(t, reports.ContentTypes, 1)
	assert.Equal(t, report.LocaleReport{Count: 2, Complete: true}, reports.ContentTypes[0].Locales["de"])
	assert.Equal(t, "finished", reports.ContentTypes[0].Jobs["de"].Status)

	rec, env = f.do(t, http.MethodGet, "/api/v1/batch-translate/jobs?status=finished", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeData[struct {
		Items []jobResponse `json:"items"`
	}](t, env)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, submitted.ID, listed.Items[0].ID)
}

func TestBatchTranslateControl(t *testing.T) {
	f := newFixture(t, time.Hour, "")
	dbtest.SeedEntry(t, f.pool, articleType, "en", "", map[string]any{"title": "One"})

	body := map[string]any{
		"contentType":  articleType,
		"sourceLocale": "en",
		"targetLocale": "de",
		"entityIds":    []int64{1},
	}
	rec, env := f.do(t, http.MethodPost, "/api/v1/batch-translate", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decodeData[jobResponse](t, env).ID
	f.waitStatus(t, jobID, "running")

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paused", decodeData[jobResponse](t, env).Status)
	require.Eventually(t, func() bool { return !f.jobs.IsRunning(jobID) }, time.Second, 5*time.Millisecond)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resumed := f.waitStatus(t, jobID, "running")
	assert.True(t, resumed.Running)
	assert.Equal(t, []int64{1}, resumed.EntityIDs)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeData[jobResponse](t, env).Status)
	require.Eventually(t, func() bool { return !f.jobs.IsRunning(jobID) }, time.Second, 5*time.Millisecond)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/"+jobID+"/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBatchTranslateRejections(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/batch-translate", map[string]any{
		"contentType":  authorType,
		"sourceLocale": "en",
		"targetLocale": "de",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/api/v1/batch-translate", map[string]any{
		"contentType": articleType,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "sourceLocale")

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate", map[string]any{
		"contentType":  articleType,
		"sourceLocale": "en",
		"targetLocale": "de",
		"unknown":      true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate", map[string]any{
		"contentType":  articleType,
		"sourceLocale": "en",
		"targetLocale": "d e!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/batch-translate/jobs/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-translate/jobs/00000000-0000-0000-0000-000000000000/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/batch-translate/jobs?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentEditsFeedBatchUpdate(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, env := f.do(t, http.MethodPost, "/api/v1/content/"+articleType, map[string]any{
		"locale":  "en",
		"data":    map[string]any{"title": "Hello"},
		"publish": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	english := decodeData[entryResponse](t, env)
	assert.NotNil(t, english.PublishedAt)

	rec, env = f.do(t, http.MethodPost, "/api/v1/content/"+articleType, map[string]any{
		"locale":  "de",
		"groupId": english.GroupID,
		"data":    map[string]any{"title": "Hallo"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	german := decodeData[entryResponse](t, env)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/content/"+articleType, map[string]any{
		"locale":  "de",
		"groupId": english.GroupID,
		"data":    map[string]any{"title": "Doppelt"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/content/"+articleType+"/"+itoa(english.ID), map[string]any{
		"data": map[string]any{"title": "Hello again"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/api/v1/updated-entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeData[struct {
		Items []updates.Item `json:"items"`
	}](t, env)
	require.Len(t, listed.Items, 1)
	assert.Equal(t, []string{"de"}, listed.Items[0].Locales)

	rec, env = f.do(t, http.MethodPost, "/api/v1/batch-update", map[string]any{
		"ids":          []string{listed.Items[0].ID},
		"sourceLocale": "en",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, updates.ApplyResult{Groups: 1, Translations: 1}, decodeData[updates.ApplyResult](t, env))

	rec, env = f.do(t, http.MethodGet, "/api/v1/content/"+articleType+"/"+itoa(german.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "de:Hello again", decodeData[entryResponse](t, env).Data["title"])

	rec, _ = f.do(t, http.MethodPost, "/api/v1/batch-update", map[string]any{
		"ids":          []string{listed.Items[0].ID},
		"sourceLocale": "en",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/content/"+articleType+"/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/content/"+articleType, map[string]any{
		"data": map[string]any{"title": "No locale"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "translator_batch_jobs_running")
}

func TestUnknownAPIRouteUsesJSend(t *testing.T) {
	f := newFixture(t, time.Millisecond, "")

	rec, env := f.do(t, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", env.Status)
}
