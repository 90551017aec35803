package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"horse.fit/translator/internal/entity"
	"horse.fit/translator/internal/language"
)

type LibreTranslateOptions struct {
	BaseURL    string
	APIKey     string
	Limiter    *PriorityLimiter
	HTTPClient *http.Client
}

// LibreTranslateProvider calls a LibreTranslate server's /translate endpoint.
type LibreTranslateProvider struct {
	endpointURL string
	apiKey      string
	limiter     *PriorityLimiter
	client      *http.Client
}

func NewLibreTranslateProvider(opts LibreTranslateOptions) (*LibreTranslateProvider, error) {
	endpoint := strings.TrimSpace(opts.BaseURL)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return nil, fmt.Errorf("invalid LibreTranslate URL %q", opts.BaseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/translate"

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &LibreTranslateProvider{
		endpointURL: parsed.String(),
		apiKey:      strings.TrimSpace(opts.APIKey),
		limiter:     opts.Limiter,
		client:      client,
	}, nil
}

func (p *LibreTranslateProvider) Name() string {
	return "libretranslate"
}

func (p *LibreTranslateProvider) Translate(ctx context.Context, req TranslateRequest) ([]string, error) {
	if p == nil {
		return nil, fmt.Errorf("libretranslate provider is nil")
	}
	if len(req.Texts) == 0 {
		return nil, nil
	}
	target := language.NormalizeCode(req.TargetLocale)
	if target == "" {
		return nil, fmt.Errorf("target locale is required")
	}
	source := language.NormalizeCode(req.SourceLocale)
	if source == "" {
		source = "auto"
	}
	format := "text"
	if req.Format == entity.FormatHTML {
		format = "html"
	}

	if err := p.limiter.Wait(ctx, req.Priority); err != nil {
		return nil, fmt.Errorf("wait for libretranslate rate limit: %w", err)
	}

	body, err := json.Marshal(libreTranslateRequest{
		Q:      req.Texts,
		Source: source,
		Target: target,
		Format: format,
		APIKey: p.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal libretranslate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build libretranslate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send libretranslate request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read libretranslate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload libreTranslateErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error); msg != "" {
				return nil, fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed libreTranslateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode libretranslate response: %w", err)
	}
	if len(parsed.TranslatedText) != len(req.Texts) {
		return nil, fmt.Errorf("libretranslate returned %d translations for %d texts", len(parsed.TranslatedText), len(req.Texts))
	}
	return parsed.TranslatedText, nil
}

func (p *LibreTranslateProvider) Usage(context.Context) (*Usage, error) {
	return nil, ErrUsageUnsupported
}

type libreTranslateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	APIKey string   `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText []string `json:"translatedText"`
}

type libreTranslateErrorResponse struct {
	Error string `json:"error"`
}
