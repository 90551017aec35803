package cli

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names an env file that takes precedence over --env.
const EnvFileVar = "TRANSLATOR_ENV_FILE"

// EnvLoader overlays one .env file onto the process environment.
type EnvLoader struct {
	path        *string
	defaultPath string
}

// AddEnvFlag registers --env on flags and returns the loader bound to it.
func AddEnvFlag(flags *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if flags == nil {
		flags = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}
	return &EnvLoader{
		path:        flags.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Candidates lists the files Load tries, in order: $TRANSLATOR_ENV_FILE, the --env
// value, its basename, then the default.
func (l *EnvLoader) Candidates() []string {
	if l == nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{}, 4)
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || path == "." {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	add(os.Getenv(EnvFileVar))
	requested := l.defaultPath
	if l.path != nil && strings.TrimSpace(*l.path) != "" {
		requested = strings.TrimSpace(*l.path)
	}
	add(requested)
	add(filepath.Base(requested))
	add(l.defaultPath)
	return out
}

// Load applies the first readable candidate, overriding variables already set, and
// returns its path. Missing files are skipped; unreadable ones are reported.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	candidates := l.Candidates()
	var errs []error
	for _, path := range candidates {
		values, err := godotenv.Read(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			}
			continue
		}
		for key, value := range values {
			if err := os.Setenv(key, value); err != nil {
				return "", fmt.Errorf("set %s from %s: %w", key, path, err)
			}
		}
		return path, nil
	}

	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", fmt.Errorf("no env file found (tried %s)", strings.Join(candidates, ", "))
}
