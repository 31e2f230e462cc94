// Package output provides formatted rendering for provider listings and
// health reports. It supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harborml/skiff/internal/health"
	"github.com/harborml/skiff/internal/llm"
)

// timeResolution rounds probe durations for display.
const timeResolution = time.Millisecond

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ProviderRow is one registry entry prepared for rendering.
type ProviderRow struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// ProviderRows builds rendering rows from registered providers in order.
func ProviderRows(ids []string, lookup func(string) llm.Provider) []ProviderRow {
	rows := make([]ProviderRow, 0, len(ids))
	for _, id := range ids {
		p := lookup(id)
		if p == nil {
			continue
		}
		rows = append(rows, ProviderRow{ID: id, Capabilities: capabilityNames(p.Capabilities())})
	}
	return rows
}

func capabilityNames(caps llm.Capabilities) []string {
	var names []string
	for _, c := range []struct {
		on   bool
		name string
	}{
		{caps.Chat, llm.CapChat},
		{caps.Embedding, llm.CapEmbedding},
		{caps.ImageGeneration, llm.CapImage},
		{caps.TTS, llm.CapTTS},
		{caps.STT, llm.CapSTT},
		{caps.Streaming, llm.CapStreaming},
	} {
		if c.on {
			names = append(names, c.name)
		}
	}
	return names
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WriteProviders outputs the provider listing in the configured format.
func (wr *Writer) WriteProviders(rows []ProviderRow) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(rows)
	case FormatTable:
		return wr.writeProviderTable(rows)
	default:
		for _, r := range rows {
			fmt.Fprintf(wr.w, "%s: %s\n", r.ID, strings.Join(r.Capabilities, ", "))
		}
		return nil
	}
}

// WriteHealth outputs health results in the configured format.
func (wr *Writer) WriteHealth(results []health.HealthResult, mode ColorMode) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(results)
	case FormatTable:
		return wr.writeHealthTable(results)
	default:
		colorize := shouldColorize(mode, wr.w)
		for _, r := range results {
			status := string(r.Status)
			if colorize {
				status = ColorizeStatus(r.Status, status)
			}
			line := fmt.Sprintf("%s: %s (%s)", r.ProviderID, status, r.Duration.Round(timeResolution))
			if r.ErrorMessage != "" {
				line += " - " + r.ErrorMessage
			}
			fmt.Fprintln(wr.w, line)
		}
		return nil
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (wr *Writer) writeProviderTable(rows []ProviderRow) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tCAPABILITIES")
	fmt.Fprintln(tw, "--------\t------------")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.ID, strings.Join(r.Capabilities, ", "))
	}
	return tw.Flush()
}

func (wr *Writer) writeHealthTable(results []health.HealthResult) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tDURATION\tERROR")
	fmt.Fprintln(tw, "--------\t------\t--------\t-----")
	for _, r := range results {
		msg := r.ErrorMessage
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ProviderID, r.Status, r.Duration.Round(timeResolution), msg)
	}
	return tw.Flush()
}
