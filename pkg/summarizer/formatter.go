package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Extraction Summary\n\n")
	fmt.Fprintf(&b, "Generated at %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Source\n\n")
	b.WriteString("| Item | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source | %s |\n", s.Source.Path)
	fmt.Fprintf(&b, "| Backend | %s |\n", s.Source.Backend)
	fmt.Fprintf(&b, "| Codec | %s |\n", s.Source.Codec)
	fmt.Fprintf(&b, "| Size | %dx%d |\n", s.Source.Width, s.Source.Height)
	fmt.Fprintf(&b, "| Time base | %s |\n", s.Source.TimeBase)
	fmt.Fprintf(&b, "| Duration | %.3f s |\n", s.Source.Duration)

	if len(s.Streams) > 0 {
		b.WriteString("\n## Streams\n\n")
		b.WriteString("| # | Type | Codec | Size | Duration |\n|---|---|---|---|---|\n")
		for _, st := range s.Streams {
			size := "-"
			if st.Width > 0 && st.Height > 0 {
				size = fmt.Sprintf("%dx%d", st.Width, st.Height)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %.3f s |\n", st.Index, st.MediaType, st.Codec, size, st.DurationSeconds())
		}
	}

	if len(s.Frames) > 0 {
		b.WriteString("\n## Frames\n\n")
		b.WriteString("| Time | PTS | File |\n|---|---|---|\n")
		for _, fr := range s.Frames {
			file := fr.File
			if file == "" {
				file = "-"
			}
			fmt.Fprintf(&b, "| %.3f s | %d | %s |\n", fr.Time, fr.PTS, file)
		}
	}

	b.WriteString("\n## Decoding\n\n")
	b.WriteString("| Counter | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Seeks | %d |\n", s.Stats.Seeks)
	fmt.Fprintf(&b, "| Packets read | %d |\n", s.Stats.PacketReads)
	fmt.Fprintf(&b, "| Decoders created | %d |\n", s.Stats.DecodersCreated)
	fmt.Fprintf(&b, "| Filter calls | %d |\n", s.Stats.FilterCalls)
	fmt.Fprintf(&b, "| Retries | %d |\n", s.Stats.Retries)

	return b.String()
}
