// Package output renders command results as aligned tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Formatter writes command output in table or JSON form.
type Formatter struct {
	Writer   io.Writer
	JSONMode bool
}

// New creates a new Formatter with the specified writer and JSON mode.
func New(w io.Writer, jsonMode bool) *Formatter {
	return &Formatter{
		Writer:   w,
		JSONMode: jsonMode,
	}
}

// Records writes data as JSON in JSON mode and as a table otherwise.
// data is usually the slice the table rows were built from, so JSON
// output keeps the record field names and types.
func (f *Formatter) Records(headers []string, rows [][]string, data any) error {
	if f.JSONMode {
		return f.JSON(data)
	}
	return f.Table(headers, rows)
}

// Table renders a table with aligned columns and a dashed separator.
func (f *Formatter) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)

	separators := make([]string, len(headers))
	for i, h := range headers {
		separators[i] = strings.Repeat("-", len(h))
	}

	lines := append([][]string{headers, separators}, rows...)
	for _, line := range lines {
		if _, err := fmt.Fprintln(tw, strings.Join(line, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

// JSON writes data as indented JSON.
func (f *Formatter) JSON(data any) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// Text writes s verbatim, or as {"<key>": s} in JSON mode.
func (f *Formatter) Text(key, s string) error {
	if f.JSONMode {
		return f.JSON(map[string]string{key: s})
	}
	_, err := io.WriteString(f.Writer, s)
	return err
}

// Timestamp formats Unix seconds as an RFC 3339 UTC date-time, or "-"
// for zero.
func Timestamp(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
