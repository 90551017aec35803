package translation

import (
	"strings"

	"horse.fit/translator/internal/language"
)

type LocaleOption struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Native string `json:"native,omitempty"`
}

type localeLabel struct {
	english string
	native  string
}

var localeLabels = map[string]localeLabel{
	"ar": {english: "Arabic", native: "العربية"},
	"de": {english: "German", native: "Deutsch"},
	"en": {english: "English", native: "English"},
	"es": {english: "Spanish", native: "Español"},
	"fr": {english: "French", native: "Français"},
	"id": {english: "Indonesian", native: "Bahasa Indonesia"},
	"it": {english: "Italian", native: "Italiano"},
	"ja": {english: "Japanese", native: "日本語"},
	"ko": {english: "Korean", native: "한국어"},
	"nl": {english: "Dutch", native: "Nederlands"},
	"pl": {english: "Polish", native: "Polski"},
	"pt": {english: "Portuguese", native: "Português"},
	"ru": {english: "Russian", native: "Русский"},
	"tr": {english: "Turkish", native: "Türkçe"},
	"uk": {english: "Ukrainian", native: "Українська"},
	"zh": {english: "Chinese", native: "中文"},
}

// LocaleOptions labels the configured locales in their given order.
func LocaleOptions(locales []string) []LocaleOption {
	options := make([]LocaleOption, 0, len(locales))
	for _, locale := range locales {
		tag := language.NormalizeTag(locale)
		if tag == "" {
			continue
		}
		labels, ok := localeLabels[language.NormalizeCode(tag)]
		if !ok {
			options = append(options, LocaleOption{Code: tag, Label: strings.ToUpper(tag)})
			continue
		}
		label := labels.english
		if region := strings.TrimPrefix(tag, language.NormalizeCode(tag)); region != "" {
			label += " (" + strings.ToUpper(strings.TrimPrefix(region, "-")) + ")"
		}
		options = append(options, LocaleOption{Code: tag, Label: label, Native: labels.native})
	}
	return options
}
