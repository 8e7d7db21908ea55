package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

const maxLineBytes = 1024 * 1024

// Record is one decoded line of the JSON run log.
type Record struct {
	Time      string
	Level     string
	Message   string
	RunID     string
	Component string
	Provider  string
	Fields    map[string]any
}

// Filter narrows the records returned by Tail and Follow. Zero values match
// everything.
type Filter struct {
	RunID    string
	MinLevel string
}

func (f Filter) match(rec Record) bool {
	if f.RunID != "" && rec.RunID != f.RunID {
		return false
	}
	if f.MinLevel != "" && levelRank(rec.Level) < levelRank(f.MinLevel) {
		return false
	}
	return true
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return 0
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}

// Parse decodes one JSON log line. Lines that are not JSON objects are kept
// as the message of an otherwise empty record.
func Parse(line string) Record {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{Message: line}
	}
	take := func(key string) string {
		value, ok := raw[key]
		if !ok {
			return ""
		}
		delete(raw, key)
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	}
	rec := Record{
		Time:      take("ts"),
		Level:     take("level"),
		Message:   take("msg"),
		RunID:     take("run_id"),
		Component: take("component"),
		Provider:  take("provider"),
	}
	if len(raw) > 0 {
		rec.Fields = raw
	}
	return rec
}

// Format renders a record in the console layout: time, level, prefix, message
// and the remaining fields sorted by key.
func Format(rec Record) string {
	var b strings.Builder
	if rec.Time != "" {
		b.WriteString(rec.Time)
		b.WriteByte(' ')
	}
	if rec.Level != "" {
		b.WriteString(strings.ToUpper(rec.Level))
		b.WriteByte(' ')
	}
	switch {
	case rec.Component != "" && rec.Provider != "":
		b.WriteString(rec.Component + "/" + rec.Provider + ": ")
	case rec.Component != "":
		b.WriteString(rec.Component + ": ")
	case rec.Provider != "":
		b.WriteString(rec.Provider + ": ")
	}
	b.WriteString(rec.Message)
	keys := make([]string, 0, len(rec.Fields))
	for key := range rec.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := fmt.Sprint(rec.Fields[key])
		if strings.ContainsAny(value, " =\"") {
			value = fmt.Sprintf("%q", value)
		}
		b.WriteString(" " + key + "=" + value)
	}
	return b.String()
}

// Tail returns up to limit matching records from the end of the file and the
// offset just past the last byte read. A missing file yields no records.
func Tail(path string, limit int, filter Filter) ([]Record, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	} else if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	var ring []Record
	offset, err := scan(file, func(rec Record) {
		if limit <= 0 {
			return
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, rec)
	}, filter)
	if err != nil {
		return nil, 0, err
	}
	return ring, offset, nil
}

// Follow polls the file from offset and calls emit for every new matching
// record until ctx is done. A truncated file is read again from the start.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(Record) error) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, emit func(Record) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	var emitErr error
	read, err := scan(file, func(rec Record) {
		if emitErr == nil {
			emitErr = emit(rec)
		}
	}, filter)
	if err != nil {
		return offset, err
	}
	if emitErr != nil {
		return offset, emitErr
	}
	return offset + read, nil
}

// scan reads complete lines from r and reports how many bytes they covered.
// A trailing partial line is left for the next read.
func scan(r io.Reader, fn func(Record), filter Filter) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > maxLineBytes {
			continue
		}
		if rec := Parse(trimmed); filter.match(rec) {
			fn(rec)
		}
	}
}
