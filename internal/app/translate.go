package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/language"
)

// runTranslate prints the translation of one stored entry without saving it.
func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	contentType := fs.String("content-type", "", "Content type uid, for example api::article.article")
	id := fs.Int64("id", 0, "Entry id to translate")
	target := fs.String("target", "", "Target locale")
	provider := fs.String("provider", "", "Translation provider name (default: TRANSLATE_PROVIDER)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*contentType) == "" || *id <= 0 {
		fmt.Fprintln(os.Stderr, "--content-type and a positive --id are required")
		return 2
	}
	targetLocale := language.NormalizeTag(*target)
	if targetLocale == "" {
		fmt.Fprintln(os.Stderr, "--target is required and must be a valid locale")
		return 2
	}

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	rt, err := setup(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	entry, err := rt.pool.FindEntryByID(ctx, strings.TrimSpace(*contentType), *id)
	if err != nil {
		if db.IsNoRows(err) {
			fmt.Fprintf(os.Stderr, "Entry not found: %s %d\n", *contentType, *id)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Load entry failed: %v\n", err)
		return 1
	}
	data, err := entry.DecodeData()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	translated, err := rt.jobs.Translator().TranslateEntry(ctx, batch.TranslateEntryParams{
		ContentType:  entry.ContentType,
		Data:         data,
		SourceLocale: entry.Locale,
		TargetLocale: targetLocale,
		Provider:     *provider,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translate entry failed: %v\n", err)
		return 1
	}
	rt.metrics.EntryTranslated(entry.ContentType, "direct")

	if err := printJSON(translated); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		return 1
	}
	return 0
}
