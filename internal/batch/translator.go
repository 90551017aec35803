package batch

import (
	"context"
	"fmt"
	"strings"

	"horse.fit/translator/internal/language"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

// EntityTranslator sends the named fields of one entry snapshot to a provider.
type EntityTranslator interface {
	Translate(ctx context.Context, req translation.EntityTranslateRequest) (map[string]any, error)
}

// EntryLookup answers relation and uid questions against stored entries.
type EntryLookup interface {
	schema.LocalizationFinder
	schema.UIDChecker
}

// Translator runs the translation pipeline for one entry: translatable fields,
// provider call, relations, uids and input cleanup. The result is never persisted here.
type Translator struct {
	resolver *schema.Resolver
	entities EntityTranslator
	lookup   EntryLookup
}

func NewTranslator(resolver *schema.Resolver, entities EntityTranslator, lookup EntryLookup) *Translator {
	return &Translator{resolver: resolver, entities: entities, lookup: lookup}
}

type TranslateEntryParams struct {
	ContentType string
	Data        map[string]any
	// SourceLocale may be empty; the provider then detects it.
	SourceLocale string
	TargetLocale string
	// Provider overrides the default provider when set.
	Provider string
	// Priority defaults to direct.
	Priority translation.Priority
}

// TranslateEntry translates a single entry without storing it.
func (t *Translator) TranslateEntry(ctx context.Context, params TranslateEntryParams) (map[string]any, error) {
	if t == nil || t.resolver == nil || t.entities == nil {
		return nil, fmt.Errorf("translator is not initialized")
	}
	ct, err := t.resolver.Registry().Get(strings.TrimSpace(params.ContentType))
	if err != nil {
		return nil, err
	}
	target := language.NormalizeTag(params.TargetLocale)
	if target == "" {
		return nil, fmt.Errorf("target locale is required")
	}
	priority := params.Priority
	if priority == "" {
		priority = translation.PriorityDirect
	}
	return t.translate(ctx, ct, params.Data, language.NormalizeTag(params.SourceLocale), target, priority, params.Provider)
}

func (t *Translator) translate(
	ctx context.Context,
	ct *schema.ContentType,
	data map[string]any,
	sourceLocale string,
	targetLocale string,
	priority translation.Priority,
	provider string,
) (map[string]any, error) {
	fields, err := t.resolver.TranslatableFields(data, ct)
	if err != nil {
		return nil, fmt.Errorf("resolve translatable fields: %w", err)
	}

	translated, err := t.entities.Translate(ctx, translation.EntityTranslateRequest{
		Data:         data,
		SourceLocale: sourceLocale,
		TargetLocale: targetLocale,
		Fields:       fields,
		Priority:     priority,
		Provider:     provider,
	})
	if err != nil {
		return nil, err
	}

	var finder schema.LocalizationFinder
	var checker schema.UIDChecker
	if t.lookup != nil {
		finder, checker = t.lookup, t.lookup
	}
	translated, err = t.resolver.TranslateRelations(ctx, translated, ct, targetLocale, finder)
	if err != nil {
		return nil, fmt.Errorf("translate relations: %w", err)
	}
	translated, err = t.resolver.UpdateUIDs(ctx, translated, ct, targetLocale, checker)
	if err != nil {
		return nil, fmt.Errorf("update uids: %w", err)
	}
	cleaned, err := t.resolver.CleanData(translated, ct)
	if err != nil {
		return nil, fmt.Errorf("clean data: %w", err)
	}
	return cleaned, nil
}
