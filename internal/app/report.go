package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"horse.fit/translator/internal/cli"
)

func runReport(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
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

	reports, err := rt.report.ContentTypes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build report failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(reports); err != nil {
			fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(reports))
	for _, report := range reports {
		locales := make([]string, 0, len(report.Locales))
		for locale := range report.Locales {
			locales = append(locales, locale)
		}
		sort.Strings(locales)
		for _, locale := range locales {
			stats := report.Locales[locale]
			jobStatus := ""
			if job, ok := report.Jobs[locale]; ok {
				jobStatus = job.Status + " " + formatProgress(job.Progress)
			}
			rows = append(rows, []string{
				truncateForTable(report.DisplayName, 32),
				locale,
				strconv.FormatInt(stats.Count, 10),
				strconv.FormatBool(stats.Complete),
				jobStatus,
			})
		}
	}
	if err := writeTable([]string{"CONTENT TYPE", "LOCALE", "ENTRIES", "COMPLETE", "LAST JOB"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		return 1
	}
	return 0
}
