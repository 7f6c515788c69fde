package semforgectl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL     string
	APIKey      string
	WorkspaceID string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("semforgectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "Semforge API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	workspaceID := fs.String("workspace-id", defaults.WorkspaceID, "Workspace ID header (used when auth is disabled)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var body []byte
	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "facts":
		method, path = http.MethodGet, "/v1/facts"
	case "generate":
		parsed, err := parseGenerateArgs(command, fs.Args()[1:], stderr)
		if err != nil {
			return 2
		}
		method, path = http.MethodPost, "/v1/models"
		body = parsed
	case "ask":
		parsed, err := parseAskArgs(fs.Args()[1:], stderr)
		if err != nil {
			return 2
		}
		method, path = http.MethodPost, "/v1/analyst/message"
		body = parsed
	case "retention-run":
		method, path = http.MethodPost, "/v1/retention/run"
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, *workspaceID, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func parseGenerateArgs(command string, args []string, stderr io.Writer) ([]byte, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	factNames := fs.String("facts", "", "Comma-separated fact names (empty uses the data dictionary)")
	query := fs.String("query", "", "Data-dictionary query selecting fact names")
	upload := fs.Bool("upload", false, "Upload the generated model to the stage")
	name := fs.String("name", "", "Filename base for the staged model")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"fact_names":       splitNames(*factNames),
		"dictionary_query": strings.TrimSpace(*query),
		"upload":           *upload,
		"filename_base":    *name,
	})
}

func parseAskArgs(args []string, stderr io.Writer) ([]byte, error) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	question := fs.String("question", "", "Natural language question for the analyst")
	factNames := fs.String("facts", "", "Comma-separated fact names (empty uses the data dictionary)")
	query := fs.String("query", "", "Data-dictionary query selecting fact names")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(*question) == "" {
		_, _ = fmt.Fprintln(stderr, "ask requires -question")
		return nil, fmt.Errorf("question is required")
	}
	return json.Marshal(map[string]any{
		"question":         strings.TrimSpace(*question),
		"fact_names":       splitNames(*factNames),
		"dictionary_query": strings.TrimSpace(*query),
	})
}

func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey, workspaceID string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(workspaceID) != "" {
		req.Header.Set("X-Workspace-ID", strings.TrimSpace(workspaceID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: semforgectl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health          GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready           GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  facts           GET /v1/facts")
	_, _ = fmt.Fprintln(w, "  generate        POST /v1/models (-facts, -query, -upload, -name)")
	_, _ = fmt.Fprintln(w, "  ask             POST /v1/analyst/message (-question, -facts, -query)")
	_, _ = fmt.Fprintln(w, "  retention-run   POST /v1/retention/run")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
