package translation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/translator/internal/config"
	"horse.fit/translator/internal/entity"
)

type upperProvider struct {
	calls []TranslateRequest
	err   error
}

func (p *upperProvider) Name() string { return "upper" }

func (p *upperProvider) Translate(_ context.Context, req TranslateRequest) ([]string, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]string, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = strings.ToUpper(text)
	}
	return out, nil
}

func (p *upperProvider) Usage(context.Context) (*Usage, error) { return nil, ErrUsageUnsupported }

type recordedCall struct {
	provider   string
	priority   string
	characters int
	failed     bool
}

type callRecorder struct {
	calls []recordedCall
}

func (r *callRecorder) ObserveProviderCall(provider, priority string, characters int, _ time.Duration, err error) {
	r.calls = append(r.calls, recordedCall{provider: provider, priority: priority, characters: characters, failed: err != nil})
}

func newUpperTranslator(t *testing.T, provider *upperProvider, recorder CallRecorder) *EntityTranslator {
	t.Helper()
	registry := NewRegistry("upper")
	require.NoError(t, registry.Register(provider))
	return NewEntityTranslator(registry, recorder)
}

func TestEntityTranslatorGroupsByFormat(t *testing.T) {
	t.Parallel()

	provider := &upperProvider{}
	recorder := &callRecorder{}
	translator := newUpperTranslator(t, provider, recorder)
	data := map[string]any{
		"title": "hello",
		"body":  "# heading",
		"seo":   map[string]any{"metaTitle": "meta"},
	}

	out, err := translator.Translate(context.Background(), EntityTranslateRequest{
		Data:         data,
		SourceLocale: "en",
		TargetLocale: "de",
		Priority:     PriorityBatch,
		Fields: []entity.Field{
			{Path: "title", Format: entity.FormatPlain},
			{Path: "body", Format: entity.FormatMarkdown},
			{Path: "seo.metaTitle"},
			{Path: "missing", Format: entity.FormatPlain},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "HELLO", out["title"])
	assert.Equal(t, "# HEADING", out["body"])
	assert.Equal(t, "META", out["seo"].(map[string]any)["metaTitle"])
	assert.Equal(t, "hello", data["title"], "input must not be mutated")

	require.Len(t, provider.calls, 2)
	assert.Equal(t, []string{"hello", "meta"}, provider.calls[0].Texts)
	assert.Equal(t, PriorityBatch, provider.calls[0].Priority)
	assert.Equal(t, entity.FormatMarkdown, provider.calls[1].Format)

	require.Len(t, recorder.calls, 2)
	assert.Equal(t, recordedCall{provider: "upper", priority: "batch", characters: 9}, recorder.calls[0])
}

func TestEntityTranslatorSameLocaleIsCopy(t *testing.T) {
	t.Parallel()

	provider := &upperProvider{}
	translator := newUpperTranslator(t, provider, nil)
	out, err := translator.Translate(context.Background(), EntityTranslateRequest{
		Data:         map[string]any{"title": "hello"},
		SourceLocale: "en",
		TargetLocale: "EN",
		Fields:       []entity.Field{{Path: "title"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out["title"])
	assert.Empty(t, provider.calls)
}

func TestEntityTranslatorWrapsProviderErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	recorder := &callRecorder{}
	translator := newUpperTranslator(t, &upperProvider{err: boom}, recorder)
	_, err := translator.Translate(context.Background(), EntityTranslateRequest{
		Data:         map[string]any{"title": "hello"},
		SourceLocale: "en",
		TargetLocale: "de",
		Fields:       []entity.Field{{Path: "title"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	require.Len(t, recorder.calls, 1)
	assert.True(t, recorder.calls[0].failed)
}

func TestDummyProviderIsIdentity(t *testing.T) {
	t.Parallel()

	texts := []string{"a", "b"}
	out, err := NewDummyProvider().Translate(context.Background(), TranslateRequest{Texts: texts})
	require.NoError(t, err)
	assert.Equal(t, texts, out)
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{TranslateProvider: "deepl", DeepLAPIKey: "k:fx", DeepLRPS: 5, LibreTranslateRPS: 2}
	registry, err := NewRegistryFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"deepl", "dummy"}, registry.ProviderNames())

	provider, err := registry.Provider("")
	require.NoError(t, err)
	assert.Equal(t, "deepl", provider.Name())

	cfg = &config.Config{TranslateProvider: "libretranslate", DeepLRPS: 5, LibreTranslateRPS: 2}
	_, err = NewRegistryFromConfig(cfg)
	assert.ErrorContains(t, err, "libretranslate")
}

func TestRegistryRejectsUnknownAndDuplicateProviders(t *testing.T) {
	t.Parallel()

	registry := NewRegistry("")
	require.NoError(t, registry.Register(NewDummyProvider()))
	require.Error(t, registry.Register(NewDummyProvider()))

	provider, err := registry.Provider(" Dummy ")
	require.NoError(t, err)
	assert.Equal(t, "dummy", provider.Name())

	_, err = registry.Provider("google")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestPriorityLimiterNilIsNoop(t *testing.T) {
	t.Parallel()

	var limiter *PriorityLimiter
	require.NoError(t, limiter.Wait(context.Background(), PriorityBatch))
	require.Nil(t, NewPriorityLimiter(0))
	require.NoError(t, NewPriorityLimiter(100).Wait(context.Background(), PriorityBatch))
}

func TestLocaleOptions(t *testing.T) {
	t.Parallel()

	options := LocaleOptions([]string{"en", "pt-br", "xx", ""})
	require.Len(t, options, 3)
	assert.Equal(t, LocaleOption{Code: "pt-br", Label: "Portuguese (BR)", Native: "Português"}, options[1])
	assert.Equal(t, "XX", options[2].Label)
}
