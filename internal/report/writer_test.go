package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webcrawler/internal/model"
)

func createTestReport() *model.CrawlReport {
	return &model.CrawlReport{
		ID:           7,
		Seed:         "https://a.test/",
		Depth:        2,
		AllowedHosts: []string{"a.test", "b.test"},
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:      1500 * time.Millisecond,
		Downloaded:   []string{"https://a.test/", "https://a.test/about", "https://b.test/"},
		Failures: []model.Failure{
			{URL: "https://a.test/missing", Kind: model.ErrorKindHTTPStatus, Message: "404 Not Found"},
			{URL: "https://b.test/down", Kind: model.ErrorKindFetch, Message: "connection refused"},
		},
		Pages: []model.Page{
			{URL: "https://a.test/", StatusCode: 200, Title: "Home", Size: 100, Hash: "h1"},
			{URL: "https://a.test/about", FinalURL: "https://a.test/about/", StatusCode: 200, Title: "About", Size: 50, Hash: "h2"},
			{URL: "https://b.test/", StatusCode: 200, Size: 25, Hash: "h3"},
		},
	}
}

func createTestDiff() *model.CrawlDiff {
	previous := createTestReport()
	current := createTestReport()
	current.ID = 8
	current.StartedAt = previous.StartedAt.Add(time.Hour)
	current.Downloaded = []string{"https://a.test/", "https://a.test/missing", "https://b.test/"}
	current.Failures = []model.Failure{
		{URL: "https://b.test/down", Kind: model.ErrorKindFetch, Message: "connection refused"},
		{URL: "https://a.test/about", Kind: model.ErrorKindFetch, Message: "timeout"},
	}
	current.Pages = []model.Page{
		{URL: "https://a.test/", StatusCode: 200, Size: 120, Hash: "h1-changed"},
		{URL: "https://a.test/missing", StatusCode: 200, Size: 10, Hash: "h4"},
		{URL: "https://b.test/", StatusCode: 200, Size: 25, Hash: "h3"},
	}
	return model.Compare(previous, current)
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CRAWL REPORT",
			"https://a.test/",
			"Crawl ID:       7",
			"Depth:          2",
			"a.test, b.test",
			"Status:         Complete",
			"SUMMARY",
			"Downloaded: 3",
			"Failed:     2",
			"Bytes:      175",
			"HOSTS",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("groups failures by kind", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		fetch := strings.Index(output, "[Fetch] (1)")
		status := strings.Index(output, "[Http Status] (1)")
		if fetch < 0 || status < 0 {
			t.Fatalf("expected both failure groups in output:\n%s", output)
		}
		if fetch > status {
			t.Error("expected fetch failures before HTTP status failures")
		}
		if !strings.Contains(output, "connection refused") {
			t.Error("expected failure message in output")
		}
	})

	t.Run("pages only in verbose mode", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		if _, err := NewSimpleWriter(&quiet).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(quiet.String(), "DOWNLOADED PAGES") {
			t.Error("expected no page list without verbose")
		}
		out := verbose.String()
		for _, want := range []string{"DOWNLOADED PAGES", "Title: Home", "Redirected to: https://a.test/about/"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected verbose output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("partial crawl", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Partial = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "INTERRUPTED") {
			t.Errorf("expected interrupted status:\n%s", buf.String())
		}
	})

	t.Run("empty sections", func(t *testing.T) {
		t.Parallel()

		report := &model.CrawlReport{Seed: "https://a.test/", Depth: 1}

		var hidden, shown bytes.Buffer
		if _, err := NewSimpleWriter(&hidden).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&shown, WithShowEmpty(true)).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(hidden.String(), "FAILURES") {
			t.Error("expected empty failures section to be hidden")
		}
		if !strings.Contains(hidden.String(), "any host") {
			t.Error("expected unrestricted crawl to show any host")
		}
		if !strings.Contains(shown.String(), "No failures") {
			t.Errorf("expected empty failures section to be shown:\n%s", shown.String())
		}
	})

	t.Run("writes diff", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteDiff(createTestDiff()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Crawl Comparison: https://a.test/",
			"UNCHANGED",
			"(ID 7)",
			"(ID 8)",
			"New Pages (1):",
			"[+] https://a.test/missing",
			"Missing Pages (1):",
			"[-] https://a.test/about",
			"Recovered (1):",
			"Changed Content (1):",
			"[~] https://a.test/",
			"New Failures (1):",
			"[Fetch] https://a.test/about: timeout",
			"Unchanged: 2 pages",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Seed != "https://a.test/" || len(decoded.Failures) != 2 {
			t.Errorf("decoded report = %+v", decoded)
		}
		if decoded.Failures[0].Kind != model.ErrorKindHTTPStatus {
			t.Errorf("failure kind = %v, want %v", decoded.Failures[0].Kind, model.ErrorKindHTTPStatus)
		}
		if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			t.Error("expected trailing newline")
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact output on a single line")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"seed\"") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"seed\"") {
			t.Errorf("expected prefixed tab indentation:\n%s", buf.String())
		}
	})

	t.Run("writes diff", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteDiff(createTestDiff()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlDiff
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Direction != model.DirectionUnchanged || len(decoded.Added) != 1 {
			t.Errorf("decoded diff = %+v", decoded)
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded JSONReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("Version = %q, want %q", decoded.Version, "v1.2.3")
	}
	if decoded.Report == nil || decoded.Report.Seed != "https://a.test/" {
		t.Errorf("Report = %+v", decoded.Report)
	}
	if decoded.Summary.Downloaded != 3 || decoded.Summary.Failed != 2 {
		t.Errorf("Summary = %+v", decoded.Summary)
	}
	if decoded.FailureCounts["fetch"] != 1 || decoded.FailureCounts["http_status"] != 1 {
		t.Errorf("FailureCounts = %v", decoded.FailureCounts)
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var textBuf, jsonBuf bytes.Buffer
	w := NewMultiWriter(NewSimpleWriter(&textBuf), NewJSONWriter(&jsonBuf))

	n, err := w.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != textBuf.Len()+jsonBuf.Len() {
		t.Errorf("total bytes = %d, want %d", n, textBuf.Len()+jsonBuf.Len())
	}
	if !strings.Contains(textBuf.String(), "CRAWL REPORT") {
		t.Error("expected text output")
	}
	if !json.Valid(jsonBuf.Bytes()) {
		t.Error("expected valid JSON output")
	}

	textBuf.Reset()
	jsonBuf.Reset()
	if _, err := w.WriteDiff(createTestDiff()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if textBuf.Len() == 0 || jsonBuf.Len() == 0 {
		t.Error("expected diff to be written to both writers")
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report",
			"`https://a.test/`",
			"## Summary",
			"## Hosts",
			"`a.test`",
			"## Failures",
			"### Fetch",
			"### Http Status",
			"## Pages",
			"```mermaid",
			"Failures by Kind",
			"[!IMPORTANT]",
			"Report generated by webcrawler",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("clean crawl", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Failures = nil

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without failures")
		}
		if !strings.Contains(output, "No failures.") || !strings.Contains(output, "[!TIP]") {
			t.Errorf("expected clean crawl output:\n%s", output)
		}
	})

	t.Run("partial crawl", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Partial = true

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[!WARNING]") {
			t.Errorf("expected warning for partial crawl:\n%s", buf.String())
		}
	})

	t.Run("writes diff", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteDiff(createTestDiff()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Comparison: https://a.test/",
			"**Status:** UNCHANGED",
			"## New Pages (1)",
			"## Missing Pages (1)",
			"## New Failures (1)",
			"*2 pages unchanged*",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("diff without changes", func(t *testing.T) {
		t.Parallel()

		diff := model.Compare(createTestReport(), createTestReport())

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteDiff(diff); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No differences") {
			t.Errorf("expected no-differences note:\n%s", buf.String())
		}
	})
}

func TestKindLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind model.ErrorKind
		want string
	}{
		{model.ErrorKindFetch, "Fetch"},
		{model.ErrorKindHTTPStatus, "Http Status"},
		{model.ErrorKindMalformedURL, "Malformed Url"},
		{model.ErrorKindEngineClosed, "Engine Closed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := KindLabel(tt.kind); got != tt.want {
				t.Errorf("KindLabel(%v) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delta int
		want  string
	}{
		{3, "+3"},
		{0, "0"},
		{-2, "-2"},
	}
	for _, tt := range tests {
		if got := FormatDelta(tt.delta); got != tt.want {
			t.Errorf("FormatDelta(%d) = %q, want %q", tt.delta, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, want: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, want: "hello"},
		{name: "long string truncated", input: "hello world", maxLen: 8, want: "hello..."},
		{name: "tiny limit", input: "hello", maxLen: 2, want: "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
