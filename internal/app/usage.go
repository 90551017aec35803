package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/translator/internal/cli"
	"horse.fit/translator/internal/translation"
)

func runUsage(args []string) int {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	provider := fs.String("provider", "", "Translation provider name (default: TRANSLATE_PROVIDER)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	name, usage, err := rt.entities.Usage(ctx, *provider)
	if errors.Is(err, translation.ErrUsageUnsupported) || (err == nil && usage == nil) {
		fmt.Printf("usage provider=%s unsupported\n", name)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load usage failed: %v\n", err)
		return 1
	}
	limit := "unlimited"
	if usage.Limit > 0 {
		limit = fmt.Sprintf("%d", usage.Limit)
	}
	fmt.Printf("usage provider=%s characters=%d limit=%s\n", name, usage.Count, limit)
	return 0
}
