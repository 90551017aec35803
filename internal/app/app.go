package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	case "translate":
		return runTranslate(args[1:])
	case "batch":
		return runBatch(args[1:])
	case "report":
		return runReport(args[1:])
	case "updates":
		return runUpdates(args[1:])
	case "usage":
		return runUsage(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "translator CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  translator <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity and schema definitions")
	fmt.Fprintln(os.Stderr, "  serve       Start the Echo API server and resume running batch jobs")
	fmt.Fprintln(os.Stderr, "  translate   Translate one stored entry and print the result")
	fmt.Fprintln(os.Stderr, "  batch       Run, list and inspect batch translate jobs")
	fmt.Fprintln(os.Stderr, "  report      Show translation coverage per content type and locale")
	fmt.Fprintln(os.Stderr, "  updates     List or re-translate localizations made stale by edits")
	fmt.Fprintln(os.Stderr, "  usage       Show translation provider quota")
	fmt.Fprintln(os.Stderr, "  hash-token  Print the bcrypt hash for ADMIN_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"translator <command> -h\" for command-specific flags.")
}
