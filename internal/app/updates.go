package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/updates"
)

func runUpdates(args []string) int {
	if len(args) == 0 {
		printUpdatesUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "list":
		return runUpdatesList(args[1:])
	case "apply":
		return runUpdatesApply(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown updates command: %s\n\n", args[0])
		printUpdatesUsage()
		return 2
	}
}

func runUpdatesList(args []string) int {
	fs := flag.NewFlagSet("updates list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	contentType := fs.String("content-type", "", "Only entries of this content type")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	items, err := rt.updates.List(ctx, strings.TrimSpace(*contentType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "List updated entries failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(items); err != nil {
			fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			truncateForTable(item.ContentType, 32),
			item.GroupID,
			strings.Join(item.Locales, ","),
			formatUTCTimestamp(item.UpdatedAt),
		})
	}
	if err := writeTable([]string{"ID", "CONTENT TYPE", "GROUP", "STALE LOCALES", "UPDATED"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		return 1
	}
	return 0
}

func runUpdatesApply(args []string) int {
	fs := flag.NewFlagSet("updates apply", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	source := fs.String("source", "", "Locale to re-translate from")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*source) == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "updates apply requires --source and at least one updated entry id")
		printUpdatesUsage()
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

	result, err := rt.updates.Apply(ctx, fs.Args(), *source)
	fmt.Printf("updates applied groups=%d translations=%d source=%s\n", result.Groups, result.Translations, *source)
	if err != nil {
		if errors.Is(err, updates.ErrUpdatedEntryNotFound) {
			fmt.Fprintf(os.Stderr, "Updated entry not found: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Apply updates failed: %v\n", err)
		return 1
	}
	return 0
}

func printUpdatesUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  translator updates list [--content-type <uid>] [--format table|json] [--env .env]")
	fmt.Fprintln(os.Stderr, "  translator updates apply --source <locale> [--env .env] <id> [<id>...]")
}
