package translation

import (
	"context"
	"fmt"
	"time"

	"horse.fit/translator/internal/entity"
	"horse.fit/translator/internal/language"
)

// CallRecorder observes provider calls. Implemented by the metrics package.
type CallRecorder interface {
	ObserveProviderCall(provider string, priority string, characters int, elapsed time.Duration, err error)
}

// EntityTranslateRequest names the fields of Data to translate.
type EntityTranslateRequest struct {
	Data         map[string]any
	SourceLocale string
	TargetLocale string
	Fields       []entity.Field
	Priority     Priority
	// Provider overrides the registry default when set.
	Provider string
}

// EntityTranslator translates the string fields of one entry snapshot.
type EntityTranslator struct {
	registry *Registry
	recorder CallRecorder
}

func NewEntityTranslator(registry *Registry, recorder CallRecorder) *EntityTranslator {
	return &EntityTranslator{registry: registry, recorder: recorder}
}

// Translate returns a translated copy of req.Data; the input is never mutated.
// Fields are grouped by format so each format costs one provider call.
func (t *EntityTranslator) Translate(ctx context.Context, req EntityTranslateRequest) (map[string]any, error) {
	if t == nil || t.registry == nil {
		return nil, fmt.Errorf("entity translator is not initialized")
	}
	out := entity.Clone(req.Data)
	if out == nil {
		out = map[string]any{}
	}
	if language.SameLocale(req.SourceLocale, req.TargetLocale) || len(req.Fields) == 0 {
		return out, nil
	}

	provider, err := t.registry.Provider(req.Provider)
	if err != nil {
		return nil, err
	}

	type group struct {
		paths []string
		texts []string
	}
	groups := map[entity.Format]*group{}
	var order []entity.Format
	for _, field := range req.Fields {
		text, ok := entity.GetString(out, field.Path)
		if !ok || text == "" {
			continue
		}
		format := field.Format
		if format == "" {
			format = entity.FormatPlain
		}
		g, exists := groups[format]
		if !exists {
			g = &group{}
			groups[format] = g
			order = append(order, format)
		}
		g.paths = append(g.paths, field.Path)
		g.texts = append(g.texts, text)
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityDirect
	}
	for _, format := range order {
		g := groups[format]
		started := time.Now()
		translated, err := provider.Translate(ctx, TranslateRequest{
			Texts:        g.texts,
			SourceLocale: req.SourceLocale,
			TargetLocale: req.TargetLocale,
			Format:       format,
			Priority:     priority,
		})
		if t.recorder != nil {
			t.recorder.ObserveProviderCall(provider.Name(), string(priority), characterCount(g.texts), time.Since(started), err)
		}
		if err != nil {
			return nil, fmt.Errorf("translate %d %s field(s) with %s: %w", len(g.texts), format, provider.Name(), err)
		}
		if len(translated) != len(g.texts) {
			return nil, fmt.Errorf("%s returned %d translations for %d texts", provider.Name(), len(translated), len(g.texts))
		}
		for i, path := range g.paths {
			if err := entity.Set(out, path, translated[i]); err != nil {
				return nil, fmt.Errorf("write translated field: %w", err)
			}
		}
	}
	return out, nil
}

// Usage reports quota for the named provider, or the default when name is empty.
func (t *EntityTranslator) Usage(ctx context.Context, name string) (string, *Usage, error) {
	if t == nil || t.registry == nil {
		return "", nil, fmt.Errorf("entity translator is not initialized")
	}
	provider, err := t.registry.Provider(name)
	if err != nil {
		return "", nil, err
	}
	usage, err := provider.Usage(ctx)
	return provider.Name(), usage, err
}
