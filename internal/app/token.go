package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"horse.fit/translator/internal/auth"
)

// runHashToken hashes the token given as argument, or read from stdin when absent.
func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: translator hash-token [token]")
		return 2
	}

	token := fs.Arg(0)
	if token == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "Read token failed: %v\n", err)
			return 1
		}
		token = line
	}
	if strings.TrimSpace(token) == "" {
		fmt.Fprintln(os.Stderr, "token must not be empty")
		return 2
	}

	hash, err := auth.HashToken(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hash token failed: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
