package batch

import (
	"context"
	"errors"
	"testing"

	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

func TestTranslateEntryRunsPipelineAtDirectPriority(t *testing.T) {
	h := newHarness(t)
	h.content.add(t, articleType, "de", "", map[string]any{"title": "x", "slug": "de-hello"})

	out, err := h.deps.Translator.TranslateEntry(context.Background(), TranslateEntryParams{
		ContentType:  articleType,
		SourceLocale: "en",
		TargetLocale: "DE",
		Data: map[string]any{
			"id":        7,
			"title":     "Hello",
			"slug":      "hello",
			"views":     3,
			"createdAt": "2026-01-01T00:00:00Z",
		},
	})
	if err != nil {
		t.Fatalf("TranslateEntry() error = %v", err)
	}
	if out["title"] != "de:Hello" {
		t.Fatalf("title = %v, want de:Hello", out["title"])
	}
	if out["slug"] != "de-hello-de" {
		t.Fatalf("slug = %v, want de-hello-de", out["slug"])
	}
	if out["views"] != 3 {
		t.Fatalf("views = %v, want 3", out["views"])
	}
	if _, ok := out["id"]; ok {
		t.Fatalf("id was not stripped")
	}
	if _, ok := out["createdAt"]; ok {
		t.Fatalf("createdAt was not stripped")
	}

	h.provider.mu.Lock()
	priorities := append([]translation.Priority(nil), h.provider.priorities...)
	h.provider.mu.Unlock()
	if len(priorities) != 1 || priorities[0] != translation.PriorityDirect {
		t.Fatalf("priorities = %v, want [direct]", priorities)
	}
}

func TestTranslateEntryUnknownContentType(t *testing.T) {
	h := newHarness(t)
	_, err := h.deps.Translator.TranslateEntry(context.Background(), TranslateEntryParams{
		ContentType:  "api::missing.missing",
		SourceLocale: "en",
		TargetLocale: "de",
	})
	if !errors.Is(err, schema.ErrContentTypeNotFound) {
		t.Fatalf("TranslateEntry() error = %v, want ErrContentTypeNotFound", err)
	}
}

func TestTranslateEntryLeavesMissingSourceLocaleToProvider(t *testing.T) {
	h := newHarness(t)

	out, err := h.deps.Translator.TranslateEntry(context.Background(), TranslateEntryParams{
		ContentType:  articleType,
		TargetLocale: "de",
		Data:         map[string]any{"title": "Bonjour"},
	})
	if err != nil {
		t.Fatalf("TranslateEntry() error = %v", err)
	}
	if out["title"] != "de:Bonjour" {
		t.Fatalf("title = %v, want de:Bonjour", out["title"])
	}
	h.provider.mu.Lock()
	sources := append([]string(nil), h.provider.sources...)
	h.provider.mu.Unlock()
	if len(sources) != 1 || sources[0] != "" {
		t.Fatalf("sources = %q, want one empty source locale", sources)
	}
}
