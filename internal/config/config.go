package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"horse.fit/translator/internal/language"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"TR_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"TR_DB_MAX_CONNS" default:"8"`

	TranslateProvider    string  `envconfig:"TRANSLATE_PROVIDER" default:"dummy"`
	DeepLAPIKey          string  `envconfig:"DEEPL_API_KEY" default:""`
	DeepLAPIURL          string  `envconfig:"DEEPL_API_URL" default:""`
	DeepLRPS             float64 `envconfig:"DEEPL_RPS" default:"5"`
	LibreTranslateURL    string  `envconfig:"LIBRETRANSLATE_URL" default:""`
	LibreTranslateAPIKey string  `envconfig:"LIBRETRANSLATE_API_KEY" default:""`
	LibreTranslateRPS    float64 `envconfig:"LIBRETRANSLATE_RPS" default:"2"`
	LocaleMap            string  `envconfig:"LOCALE_MAP" default:""`

	SchemaDir                 string        `envconfig:"SCHEMA_DIR" default:"./schemas"`
	Locales                   string        `envconfig:"LOCALES" default:"en"`
	TranslatedFieldTypes      string        `envconfig:"TRANSLATED_FIELD_TYPES" default:"string,text,richtext"`
	TranslateRelations        bool          `envconfig:"TRANSLATE_RELATIONS" default:"true"`
	RegenerateUIDs            bool          `envconfig:"REGENERATE_UIDS" default:"true"`
	IgnoreUpdatedContentTypes string        `envconfig:"IGNORE_UPDATED_CONTENT_TYPES" default:""`
	BatchInterval             time.Duration `envconfig:"BATCH_INTERVAL" default:"5s"`

	AdminTokenHash     string `envconfig:"ADMIN_TOKEN_HASH" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("TR_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("TR_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("TR_DB_MIN_CONNS (%d) cannot exceed TR_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.TranslateProvider) == "" {
		return fmt.Errorf("TRANSLATE_PROVIDER is required")
	}
	if c.DeepLRPS <= 0 {
		return fmt.Errorf("DEEPL_RPS must be > 0")
	}
	if c.LibreTranslateRPS <= 0 {
		return fmt.Errorf("LIBRETRANSLATE_RPS must be > 0")
	}
	if _, err := c.LocaleMapping(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SchemaDir) == "" {
		return fmt.Errorf("SCHEMA_DIR is required")
	}
	if len(c.LocaleList()) == 0 {
		return fmt.Errorf("LOCALES must name at least one locale")
	}
	if len(c.TranslatedFieldTypeList()) == 0 {
		return fmt.Errorf("TRANSLATED_FIELD_TYPES must name at least one attribute type")
	}
	if c.BatchInterval < 100*time.Millisecond {
		return fmt.Errorf("BATCH_INTERVAL must be >= 100ms")
	}
	return nil
}

// LocaleMapping parses LOCALE_MAP ("en:EN-US,pt:PT-PT") into locale -> provider code.
func (c *Config) LocaleMapping() (map[string]string, error) {
	mapping := map[string]string{}
	if c == nil {
		return mapping, nil
	}
	for _, part := range splitCSV(c.LocaleMap) {
		locale, code, ok := strings.Cut(part, ":")
		locale = language.NormalizeTag(locale)
		code = strings.TrimSpace(code)
		if !ok || locale == "" || code == "" {
			return nil, fmt.Errorf("LOCALE_MAP entry %q must look like locale:CODE", part)
		}
		mapping[locale] = code
	}
	return mapping, nil
}

func (c *Config) LocaleList() []string {
	if c == nil {
		return nil
	}
	return language.ParseList(c.Locales)
}

func (c *Config) TranslatedFieldTypeList() []string {
	if c == nil {
		return nil
	}
	types := splitCSV(c.TranslatedFieldTypes)
	for i := range types {
		types[i] = strings.ToLower(types[i])
	}
	return types
}

func (c *Config) IgnoredUpdatedContentTypeList() []string {
	if c == nil {
		return nil
	}
	return splitCSV(c.IgnoreUpdatedContentTypes)
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}
	return splitCSV(c.CORSAllowedOrigins)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
