package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/db"
)

func runBatch(args []string) int {
	if len(args) == 0 {
		printBatchUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "run":
		return runBatchRun(args[1:])
	case "list":
		return runBatchList(args[1:])
	case "status":
		return runBatchStatus(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown batch command: %s\n\n", args[0])
		printBatchUsage()
		return 2
	}
}

// runBatchRun submits a job and runs it in the foreground. An interrupt leaves the
// record running so the next serve process resumes it.
func runBatchRun(args []string) int {
	fs := flag.NewFlagSet("batch run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	contentType := fs.String("content-type", "", "Content type uid, for example api::article.article")
	source := fs.String("source", "", "Source locale")
	target := fs.String("target", "", "Target locale")
	idsRaw := fs.String("ids", "", "Comma separated source entry ids (default: every untranslated entry)")
	autoPublish := fs.Bool("auto-publish", false, "Publish created localizations")
	timeout := fs.Duration("timeout", 0, "Stop waiting after this long (0 waits until the job ends)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*contentType) == "" || strings.TrimSpace(*source) == "" || strings.TrimSpace(*target) == "" {
		fmt.Fprintln(os.Stderr, "--content-type, --source and --target are required")
		return 2
	}
	ids, err := parseEntityIDs(*idsRaw)
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

	record, err := rt.jobs.SubmitJob(ctx, batch.SubmitParams{
		ContentType:  *contentType,
		SourceLocale: *source,
		TargetLocale: *target,
		EntityIDs:    ids,
		AutoPublish:  *autoPublish,
	})
	if err != nil {
		if errors.Is(err, batch.ErrJobAlreadyExists) {
			fmt.Fprintf(os.Stderr, "A job for %s %s -> %s is already active\n", *contentType, *source, *target)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Submit batch job failed: %v\n", err)
		return 1
	}
	fmt.Printf("batch job=%s content_type=%s source=%s target=%s started\n", record.JobUUID, record.ContentType, record.SourceLocale, record.TargetLocale)

	outcome, err := rt.jobs.WaitJob(ctx, record.JobUUID)
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if destroyErr := rt.jobs.Destroy(shutdownCtx); destroyErr != nil {
			rt.logger.Error().Err(destroyErr).Str("job_id", record.JobUUID).Msg("job did not stop")
		}
		fmt.Fprintf(os.Stderr, "Stopped waiting for job %s (%v); it resumes with the next serve\n", record.JobUUID, err)
		return 1
	}

	final, err := rt.jobs.GetJob(context.Background(), record.JobUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load job failed: %v\n", err)
		return 1
	}
	fmt.Printf("batch job=%s status=%s progress=%s\n", final.JobUUID, final.Status, formatProgress(final.Progress))
	if outcome.Kind != batch.OutcomeFinished {
		if failure := outcome.Err(); failure != nil {
			fmt.Fprintf(os.Stderr, "Batch job failed: %v\n", failure)
		}
		return 1
	}
	return 0
}

func runBatchList(args []string) int {
	fs := flag.NewFlagSet("batch list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	contentType := fs.String("content-type", "", "Only jobs for this content type")
	status := fs.String("status", "", "Only jobs in this status")
	limit := fs.Int("limit", 50, "Maximum number of jobs")
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
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	filter := db.JobFilter{ContentType: strings.TrimSpace(*contentType), NewestFirst: true, Limit: *limit}
	if strings.TrimSpace(*status) != "" {
		parsed, err := batch.ParseStatus(*status)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		filter.Statuses = []string{parsed.String()}
	}

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	rt, err := setup(ctx, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	records, err := rt.jobs.ListJobs(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List jobs failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		items := make([]jobView, 0, len(records))
		for i := range records {
			view, err := newJobView(&records[i])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			items = append(items, view)
		}
		if err := printJSON(items); err != nil {
			fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.JobUUID,
			truncateForTable(record.ContentType, 32),
			record.SourceLocale + " -> " + record.TargetLocale,
			record.Status,
			formatProgress(record.Progress),
			formatUTCTimestamp(record.UpdatedAt),
		})
	}
	if err := writeTable([]string{"JOB", "CONTENT TYPE", "LOCALES", "STATUS", "PROGRESS", "UPDATED"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		return 1
	}
	return 0
}

func runBatchStatus(args []string) int {
	fs := flag.NewFlagSet("batch status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "batch status requires one job id")
		printBatchUsage()
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

	record, err := rt.jobs.GetJob(ctx, fs.Arg(0))
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) {
			fmt.Fprintf(os.Stderr, "Job not found: %s\n", fs.Arg(0))
			return 1
		}
		fmt.Fprintf(os.Stderr, "Load job failed: %v\n", err)
		return 1
	}
	view, err := newJobView(record)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := printJSON(view); err != nil {
		fmt.Fprintf(os.Stderr, "Write output failed: %v\n", err)
		return 1
	}
	return 0
}

type jobView struct {
	ID            string            `json:"id"`
	ContentType   string            `json:"content_type"`
	SourceLocale  string            `json:"source_locale"`
	TargetLocale  string            `json:"target_locale"`
	EntityIDs     []int64           `json:"entity_ids,omitempty"`
	AutoPublish   bool              `json:"auto_publish"`
	Status        string            `json:"status"`
	Progress      float64           `json:"progress"`
	FailureReason *db.FailureReason `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func newJobView(record *db.BatchTranslateJob) (jobView, error) {
	ids, err := record.EntityIDList()
	if err != nil {
		return jobView{}, err
	}
	failure, err := record.Failure()
	if err != nil {
		return jobView{}, err
	}
	return jobView{
		ID:            record.JobUUID,
		ContentType:   record.ContentType,
		SourceLocale:  record.SourceLocale,
		TargetLocale:  record.TargetLocale,
		EntityIDs:     ids,
		AutoPublish:   record.AutoPublish,
		Status:        record.Status,
		Progress:      record.Progress,
		FailureReason: failure,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}, nil
}

func printBatchUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  translator batch run --content-type <uid> --source <locale> --target <locale> [--ids 1,2,3] [--auto-publish] [--timeout 0] [--env .env]")
	fmt.Fprintln(os.Stderr, "  translator batch list [--content-type <uid>] [--status running] [--limit 50] [--format table|json] [--env .env]")
	fmt.Fprintln(os.Stderr, "  translator batch status [--env .env] <job_id>")
}
