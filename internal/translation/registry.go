package translation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"horse.fit/translator/internal/config"
)

// DefaultProviderName is used when TRANSLATE_PROVIDER is unset.
const DefaultProviderName = "dummy"

// ErrUnknownProvider is returned when a caller names a provider that is not registered.
var ErrUnknownProvider = errors.New("unknown translation provider")

// Registry stores translation providers and resolves a default provider.
type Registry struct {
	providers       map[string]Provider
	defaultProvider string
}

func NewRegistry(defaultProvider string) *Registry {
	normalizedDefault := normalizeProviderName(defaultProvider)
	if normalizedDefault == "" {
		normalizedDefault = DefaultProviderName
	}

	return &Registry{
		providers:       make(map[string]Provider),
		defaultProvider: normalizedDefault,
	}
}

// NewRegistryFromConfig registers the dummy provider plus every provider with credentials
// and fails when the configured default is unavailable.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	localeMap, err := cfg.LocaleMapping()
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(cfg.TranslateProvider)
	if err := registry.Register(NewDummyProvider()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DeepLAPIKey) != "" {
		provider := NewDeepLProvider(DeepLOptions{
			APIKey:    cfg.DeepLAPIKey,
			BaseURL:   cfg.DeepLAPIURL,
			LocaleMap: localeMap,
			Limiter:   NewPriorityLimiter(cfg.DeepLRPS),
		})
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.LibreTranslateURL) != "" {
		provider, err := NewLibreTranslateProvider(LibreTranslateOptions{
			BaseURL: cfg.LibreTranslateURL,
			APIKey:  cfg.LibreTranslateAPIKey,
			Limiter: NewPriorityLimiter(cfg.LibreTranslateRPS),
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	if _, exists := registry.providers[registry.defaultProvider]; !exists {
		return nil, fmt.Errorf("translation provider %q is not configured (available: %s)", registry.defaultProvider, strings.Join(registry.ProviderNames(), ", "))
	}
	return registry, nil
}

// Register adds one provider.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("translation provider %q is registered twice", name)
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves a provider by name. Empty names use the configured default provider.
func (r *Registry) Provider(name string) (Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no translation providers are registered")
	}

	resolvedName := normalizeProviderName(name)
	if resolvedName == "" {
		resolvedName = r.defaultProvider
	}
	provider, ok := r.providers[resolvedName]
	if ok {
		return provider, nil
	}

	return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, resolvedName, strings.Join(r.ProviderNames(), ", "))
}

func (r *Registry) DefaultProvider() string {
	if r == nil {
		return ""
	}
	return r.defaultProvider
}

func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
