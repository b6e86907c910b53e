package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// Entry is one record from tray.log.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	Attrs     []Attr
	Raw       string
}

// Attr is a structured field other than time, level, msg and component.
type Attr struct {
	Key   string
	Value string
}

// Tail returns at most n lines from the end of the file at path. A missing
// file is not an error; the kiosk may not have logged yet.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	total := 0
	for scanner.Scan() {
		ring[total%n] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if total <= n {
		return ring[:total], nil
	}
	start := total % n
	return append(ring[start:], ring[:start]...), nil
}

// Read parses the last n records of path.
func Read(path string, n int) ([]Entry, error) {
	lines, err := Tail(path, n)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

// Parse decodes a JSON slog line. Lines that are not JSON come back with
// the whole line as Message.
func Parse(line string) Entry {
	entry := Entry{Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		entry.Message = line
		return entry
	}
	for key, value := range fields {
		switch key {
		case "time":
			if s, ok := value.(string); ok {
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			entry.Level = fmt.Sprint(value)
		case "msg":
			entry.Message = fmt.Sprint(value)
		case "component":
			entry.Component = fmt.Sprint(value)
		default:
			entry.Attrs = append(entry.Attrs, Attr{Key: key, Value: formatValue(value)})
		}
	}
	slices.SortFunc(entry.Attrs, func(a, b Attr) int { return strings.Compare(a.Key, b.Key) })
	return entry
}

// String renders the entry on one line: time, level, component, message,
// then attributes as key=value.
func (e Entry) String() string {
	if e.Level == "" && e.Time.IsZero() {
		return e.Message
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", e.Level)
	if e.Component != "" {
		b.WriteString(" [")
		b.WriteString(e.Component)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	for _, attr := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(attr.Key)
		b.WriteByte('=')
		b.WriteString(attr.Value)
	}
	return b.String()
}

// Filter keeps entries at or above minLevel. An empty minLevel keeps all.
func Filter(entries []Entry, minLevel string) []Entry {
	if strings.TrimSpace(minLevel) == "" {
		return slices.Clone(entries)
	}
	floor := levelRank(minLevel)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if levelRank(e.Level) >= floor {
			out = append(out, e)
		}
	}
	return out
}

func levelRank(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return 0
	case "INFO", "":
		return 1
	case "WARN", "WARNING":
		return 2
	case "ERROR":
		return 3
	default:
		return 1
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		if strings.ContainsAny(v, " \t\"") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case float64:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
