package health

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadRecords reads a JSON array of records from path, validates each entry,
// and returns them sorted by timestamp ascending.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read health data: %w", err)
	}
	return ParseRecords(data)
}

// ParseRecords decodes and validates a JSON array of records.
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse health data: %w", err)
	}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// RenderRecords produces the canonical textual rendering of a raw batch,
// used for word counting. One line per record: date, category, then
// field=value pairs in sorted field order.
func RenderRecords(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Timestamp.Format("2006-01-02"))
		b.WriteString(" ")
		b.WriteString(string(r.Category))
		fields := make([]string, 0, len(r.Fields))
		for name := range r.Fields {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			b.WriteString(" ")
			b.WriteString(name)
			b.WriteString("=")
			b.WriteString(r.Fields[name].String())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CountWords counts whitespace-separated tokens in the canonical rendering.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
