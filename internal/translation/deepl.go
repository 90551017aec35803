package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"horse.fit/translator/internal/entity"
	"horse.fit/translator/internal/language"
)

const (
	DeepLFreeURL = "https://api-free.deepl.com"
	DeepLProURL  = "https://api.deepl.com"

	deeplMaxTexts = 50
	deeplMaxBytes = 128 * 1024
)

// deeplTargetDefaults picks a regional variant where DeepL rejects the bare language.
var deeplTargetDefaults = map[string]string{
	"en": "EN-US",
	"pt": "PT-PT",
}

type DeepLOptions struct {
	APIKey string
	// BaseURL defaults to the free or pro host depending on the key suffix.
	BaseURL    string
	LocaleMap  map[string]string
	Limiter    *PriorityLimiter
	HTTPClient *http.Client
}

// DeepLProvider calls the DeepL v2 REST API.
type DeepLProvider struct {
	apiKey    string
	baseURL   string
	localeMap map[string]string
	limiter   *PriorityLimiter
	client    *http.Client
}

func NewDeepLProvider(opts DeepLOptions) *DeepLProvider {
	apiKey := strings.TrimSpace(opts.APIKey)
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DeepLProURL
		if strings.HasSuffix(apiKey, ":fx") {
			baseURL = DeepLFreeURL
		}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	localeMap := make(map[string]string, len(opts.LocaleMap))
	for locale, code := range opts.LocaleMap {
		localeMap[language.NormalizeTag(locale)] = strings.ToUpper(strings.TrimSpace(code))
	}
	return &DeepLProvider{
		apiKey:    apiKey,
		baseURL:   baseURL,
		localeMap: localeMap,
		limiter:   opts.Limiter,
		client:    client,
	}
}

func (p *DeepLProvider) Name() string {
	return "deepl"
}

func (p *DeepLProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if p == nil {
		return nil, fmt.Errorf("deepl provider is nil")
	}
	if len(req.Texts) == 0 {
		return nil, nil
	}
	target := p.TargetCode(req.TargetLocale)
	if target == "" {
		return nil, fmt.Errorf("target locale is required")
	}

	translated := make([]string, 0, len(req.Texts))
	for _, chunk := range chunkTexts(req.Texts, deeplMaxTexts, deeplMaxBytes) {
		if err := p.limiter.Wait(ctx, req.Priority); err != nil {
			return nil, fmt.Errorf("wait for deepl rate limit: %w", err)
		}
		body := deeplTranslateRequest{
			Text:       chunk,
			SourceLang: SourceCode(req.SourceLocale),
			TargetLang: target,
		}
		if req.Format == entity.FormatHTML {
			body.TagHandling = "html"
		}

		var parsed deeplTranslateResponse
		if err := p.do(ctx, http.MethodPost, "/v2/translate", body, &parsed); err != nil {
			return nil, err
		}
		if len(parsed.Translations) != len(chunk) {
			return nil, fmt.Errorf("deepl returned %d translations for %d texts", len(parsed.Translations), len(chunk))
		}
		for _, item := range parsed.Translations {
			translated = append(translated, item.Text)
		}
	}
	return translated, nil
}

func (p *DeepLProvider) Usage(ctx context.Context) (*Usage, error) {
	if p == nil {
		return nil, fmt.Errorf("deepl provider is nil")
	}
	var parsed deeplUsageResponse
	if err := p.do(ctx, http.MethodGet, "/v2/usage", nil, &parsed); err != nil {
		return nil, err
	}
	return &Usage{Count: parsed.CharacterCount, Limit: parsed.CharacterLimit}, nil
}

// TargetCode maps a locale to the DeepL target language code.
func (p *DeepLProvider) TargetCode(locale string) string {
	tag := language.NormalizeTag(locale)
	if tag == "" {
		return ""
	}
	if p != nil {
		if code, ok := p.localeMap[tag]; ok {
			return code
		}
	}
	if code, ok := deeplTargetDefaults[tag]; ok {
		return code
	}
	return strings.ToUpper(tag)
}

// SourceCode is the upper-cased primary subtag; DeepL source languages carry no region.
func SourceCode(locale string) string {
	return strings.ToUpper(language.NormalizeCode(locale))
}

func (p *DeepLProvider) do(ctx context.Context, method, path string, payload any, out any) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal deepl request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build deepl request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send deepl request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read deepl response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload deeplErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Message); msg != "" {
				return fmt.Errorf("deepl status %d: %s", resp.StatusCode, msg)
			}
		}
		return fmt.Errorf("deepl status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode deepl response: %w", err)
	}
	return nil
}

type deeplTranslateRequest struct {
	Text        []string `json:"text"`
	SourceLang  string   `json:"source_lang,omitempty"`
	TargetLang  string   `json:"target_lang"`
	TagHandling string   `json:"tag_handling,omitempty"`
}

type deeplTranslateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

type deeplUsageResponse struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

type deeplErrorResponse struct {
	Message string `json:"message"`
}

// chunkTexts splits texts into ordered groups bounded by count and byte size.
// A single oversized text still gets its own chunk.
func chunkTexts(texts []string, maxCount, maxBytes int) [][]string {
	var (
		chunks [][]string
		chunk  []string
		size   int
	)
	for _, text := range texts {
		if len(chunk) > 0 && (len(chunk) >= maxCount || size+len(text) > maxBytes) {
			chunks = append(chunks, chunk)
			chunk, size = nil, 0
		}
		chunk = append(chunk, text)
		size += len(text)
	}
	if len(chunk) > 0 {
		chunks = append(chunks, chunk)
	}
	return chunks
}
