// Package salesbotctl is the admin CLI for a running salesbot. It talks to
// the admin HTTP API only.
package salesbotctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/salesbot/salesbot/internal/conversation"
	"github.com/salesbot/salesbot/internal/nl2sql"
	"github.com/salesbot/salesbot/internal/render"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
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

	fs := flag.NewFlagSet("salesbotctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "salesbot admin API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	rawJSON := fs.Bool("json", false, "print the raw JSON response")

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
	method, path := http.MethodGet, ""
	var body []byte
	switch command {
	case "health":
		path = "/v1/health"
	case "ready":
		path = "/v1/ready"
	case "status":
		path = "/v1/status"
	case "history":
		path = "/v1/history"
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			writeUsage(stderr)
			return 2
		}
		encoded, err := json.Marshal(map[string]string{"question": question})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "encode question: %v\n", err)
			return 1
		}
		method, path, body = http.MethodPost, "/v1/ask", encoded
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if !*rawJSON {
		var printErr error
		switch command {
		case "ask":
			printErr = printReply(stdout, responseBody)
		case "history":
			printErr = printHistory(stdout, responseBody)
		case "status":
			printErr = printStatus(stdout, responseBody)
		default:
			printErr = errNoFormatter
		}
		if printErr == nil {
			return 0
		}
		if !errors.Is(printErr, errNoFormatter) {
			_, _ = fmt.Fprintf(stderr, "decode response: %v\n", printErr)
		}
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

var errNoFormatter = errors.New("no formatter")

func doRequest(ctx context.Context, client *http.Client, method, url string, body []byte) (int, []byte, error) {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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

// printReply writes an ask reply for a terminal. Row payloads become a table.
func printReply(w io.Writer, raw []byte) error {
	var reply conversation.Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return err
	}

	switch {
	case reply.Payload == nil:
		_, _ = fmt.Fprintln(w, reply.Text)
	case reply.Payload.Kind == render.KindRows:
		_, _ = fmt.Fprintln(w, reply.Payload.Header)
		if len(reply.Payload.Rows) > 0 {
			writeRowsTable(w, reply.Payload.Rows)
		}
		if reply.Payload.Footer != "" {
			_, _ = fmt.Fprintln(w, reply.Payload.Footer)
		}
	default:
		_, _ = fmt.Fprintln(w, reply.Payload.Header)
		_, _ = fmt.Fprintln(w, reply.Payload.Value)
		for _, field := range reply.Payload.Fields {
			_, _ = fmt.Fprintf(w, "%s: %s\n", field.Name, field.Value)
		}
	}

	if reply.ChartURL != "" {
		_, _ = fmt.Fprintf(w, "\nChart: %s\n", reply.ChartURL)
	}
	if reply.Summary != "" {
		_, _ = fmt.Fprintf(w, "\nInsight: %s\n", reply.Summary)
	}
	if reply.Translation != nil && reply.Translation.SQL != "" {
		_, _ = fmt.Fprintf(w, "\nSQL (%s): %s\n", reply.Translation.Source, reply.Translation.SQL)
	}
	return nil
}

func writeRowsTable(w io.Writer, rows [][]render.Field) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	headers := make([]string, 0, len(rows[0]))
	for _, field := range rows[0] {
		headers = append(headers, field.Name)
	}
	table.SetHeader(headers)
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, field := range row {
			cells = append(cells, field.Value)
		}
		table.Append(cells)
	}
	table.Render()
}

func printHistory(w io.Writer, raw []byte) error {
	var body struct {
		Entries []nl2sql.HistoryEntry `json:"entries"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	if len(body.Entries) == 0 {
		_, _ = fmt.Fprintln(w, "No translations recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"#", "Question", "SQL", "Recorded"})
	for i, entry := range body.Entries {
		recorded := ""
		if !entry.CreatedAt.IsZero() {
			recorded = entry.CreatedAt.UTC().Format(time.RFC3339)
		}
		table.Append([]string{strconv.Itoa(i + 1), entry.Question, entry.SQL, recorded})
	}
	table.Render()
	return nil
}

func printStatus(w io.Writer, raw []byte) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, body.Status)
	return nil
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
	_, _ = fmt.Fprintln(w, "usage: salesbotctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health            GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready             GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  status            GET /v1/status")
	_, _ = fmt.Fprintln(w, "  history           GET /v1/history")
	_, _ = fmt.Fprintln(w, "  ask <question>    POST /v1/ask")
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
