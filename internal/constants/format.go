package constants

import (
	"fmt"
	"strings"
)

// OutputFormat names a result sink.
type OutputFormat string

const (
	// FormatSQLite records runs and curves in the SQLite run history.
	FormatSQLite OutputFormat = "sqlite"

	// FormatCSV writes the probability and curve rows in the CSV directory layout.
	FormatCSV OutputFormat = "csv"

	// FormatArrow writes raw trajectories as Arrow IPC files.
	FormatArrow OutputFormat = "arrow"
)

// OutputFormats lists every supported format.
var OutputFormats = []OutputFormat{FormatSQLite, FormatCSV, FormatArrow}

// Valid returns true if the format is a recognized value.
func (f OutputFormat) Valid() bool {
	switch f {
	case FormatSQLite, FormatCSV, FormatArrow:
		return true
	}
	return false
}

// String returns the string representation of the format.
func (f OutputFormat) String() string {
	return string(f)
}

// ParseOutputFormats parses a comma-separated list such as "sqlite,csv".
// Duplicates are dropped; an empty string yields an empty list.
func ParseOutputFormats(s string) ([]OutputFormat, error) {
	var out []OutputFormat
	seen := make(map[OutputFormat]bool)
	for _, part := range strings.Split(s, ",") {
		f := OutputFormat(strings.ToLower(strings.TrimSpace(part)))
		if f == "" || seen[f] {
			continue
		}
		if !f.Valid() {
			return nil, fmt.Errorf("invalid output format: %s (valid: sqlite, csv, arrow)", part)
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}
