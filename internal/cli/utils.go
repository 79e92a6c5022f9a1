// Package cli formats command output for semantica.
package cli

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText prints the bare value, or null (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// SearchResult is the outcome of one lookup. Position is -1 when nothing
// matched.
type SearchResult struct {
	Query      string  `json:"query"`
	Found      bool    `json:"found"`
	Value      any     `json:"value"`
	Position   int     `json:"position"`
	Similarity float32 `json:"similarity,omitempty"`
}

// WriteSearchResult writes r to w. Text output is the matched value or
// null on its own line.
func WriteSearchResult(w io.Writer, r SearchResult, format OutputFormat) error {
	if !r.Found {
		r.Value = nil
		r.Position = -1
	}
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	if !r.Found {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	_, err := fmt.Fprintln(w, r.Value)
	return err
}

// Stats summarizes a stored index.
type Stats struct {
	Path        string `json:"path"`
	Backend     string `json:"backend"`
	Compression string `json:"compression"`
	Entries     int    `json:"entries"`
	Dimensions  int    `json:"dimensions"`
	StoredBytes int64  `json:"stored_bytes"`
	DiskBytes   int64  `json:"disk_bytes"`
}

// WriteStats writes s to w in the given format.
func WriteStats(w io.Writer, s Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Index:       %s\n", s.Path)
	fmt.Fprintf(w, "Backend:     %s (compression: %s)\n", s.Backend, s.Compression)
	fmt.Fprintf(w, "Entries:     %d\n", s.Entries)
	fmt.Fprintf(w, "Dimensions:  %d\n", s.Dimensions)
	fmt.Fprintf(w, "Stored size: %s\n", FormatBytes(s.StoredBytes))
	if s.DiskBytes > 0 {
		fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(s.DiskBytes))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
