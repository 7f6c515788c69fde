package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/semforge/semforge/internal/cli/semforgectl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("SEMFORGE_CLI_TIMEOUT")), 10*time.Second)
	options := semforgectl.Options{
		BaseURL:     envOr("SEMFORGE_API_URL", "http://localhost:8080"),
		APIKey:      strings.TrimSpace(os.Getenv("SEMFORGE_API_KEY")),
		WorkspaceID: strings.TrimSpace(os.Getenv("SEMFORGE_WORKSPACE_ID")),
		Timeout:     timeout,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}

	code := semforgectl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid SEMFORGE_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
