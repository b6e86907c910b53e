package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tray.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTail(t *testing.T) {
	var all []string
	for i := 1; i <= 10; i++ {
		all = append(all, fmt.Sprintf("line %d", i))
	}
	path := writeLines(t, all...)

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "zero", n: 0, want: nil},
		{name: "negative", n: -1, want: nil},
		{name: "partial", n: 5, want: all[5:]},
		{name: "partial not dividing", n: 3, want: all[7:]},
		{name: "exact", n: 10, want: all},
		{name: "more than exists", n: 20, want: all},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tail(path, tt.n)
			if err != nil {
				t.Fatalf("Tail returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tail = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTail_MissingFile(t *testing.T) {
	got, err := Tail(filepath.Join(t.TempDir(), "nope.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Tail = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"time":"2026-03-01T14:03:22.5Z","level":"INFO","msg":"no active meal, polling disarmed","component":"poller","seq":4,"status":"in progress"}`
	got := Parse(line)

	want := time.Date(2026, 3, 1, 14, 3, 22, 500000000, time.UTC)
	if !got.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", got.Time, want)
	}
	if got.Level != "INFO" || got.Component != "poller" || got.Message != "no active meal, polling disarmed" {
		t.Fatalf("entry = %+v", got)
	}
	wantAttrs := []Attr{{Key: "seq", Value: "4"}, {Key: "status", Value: `"in progress"`}}
	if !reflect.DeepEqual(got.Attrs, wantAttrs) {
		t.Fatalf("Attrs = %v, want %v", got.Attrs, wantAttrs)
	}
	if got.Raw != line {
		t.Fatalf("Raw = %q, want original line", got.Raw)
	}
}

func TestParse_PlainText(t *testing.T) {
	got := Parse("panic: something broke")
	if got.Message != "panic: something broke" || got.Level != "" {
		t.Fatalf("entry = %+v, want plain message", got)
	}
	if got.String() != "panic: something broke" {
		t.Fatalf("String = %q, want the raw line", got.String())
	}
}

func TestEntryString(t *testing.T) {
	e := Entry{Level: "WARN", Component: "nfc", Message: "restart failed", Attrs: []Attr{{Key: "attempt", Value: "3"}}}
	if got, want := e.String(), "WARN  [nfc] restart failed attempt=3"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestRead_SkipsBlankLines(t *testing.T) {
	path := writeLines(t,
		`{"level":"INFO","msg":"a"}`,
		"",
		`{"level":"ERROR","msg":"b"}`,
	)
	entries, err := Read(path, 10)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "a" || entries[1].Message != "b" {
		t.Fatalf("entries = %+v, want a, b", entries)
	}
}

func TestFilter(t *testing.T) {
	entries := []Entry{
		{Level: "DEBUG", Message: "d"},
		{Level: "INFO", Message: "i"},
		{Level: "WARN", Message: "w"},
		{Level: "ERROR", Message: "e"},
	}
	tests := []struct {
		min  string
		want int
	}{
		{"", 4},
		{"debug", 4},
		{"INFO", 3},
		{"WARN", 2},
		{"ERROR", 1},
	}
	for _, tt := range tests {
		if got := len(Filter(entries, tt.min)); got != tt.want {
			t.Fatalf("Filter(%q) kept %d, want %d", tt.min, got, tt.want)
		}
	}
}
