package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/ranksearch/internal/aggregate"
)

type jsonReport struct {
	Query     string                `json:"query"`
	Providers []string              `json:"providers"`
	Results   []aggregate.RankedHit `json:"results"`
}

func render(w io.Writer, format, term string, providers []string, results []aggregate.RankedHit) error {
	switch format {
	case FormatJSON:
		if results == nil {
			results = []aggregate.RankedHit{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonReport{Query: term, Providers: providers, Results: results})
	case FormatMarkdown, "":
		_, err := io.WriteString(w, renderMarkdown(term, providers, results))
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

// renderMarkdown writes one numbered item per hit followed by its ranks in
// provider order.
func renderMarkdown(term string, providers []string, results []aggregate.RankedHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Results for %q\n\n", term)
	if len(results) == 0 {
		b.WriteString("No results.\n")
		return b.String()
	}
	for i, h := range results {
		title := h.Title
		if strings.TrimSpace(title) == "" {
			title = h.URL
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, escapeMarkdown(title), h.URL)
		if d := strings.TrimSpace(h.Description); d != "" {
			fmt.Fprintf(&b, "   %s\n", escapeMarkdown(d))
		}
		if len(providers) > 0 {
			parts := make([]string, 0, len(providers))
			for _, p := range providers {
				parts = append(parts, p+": "+h.Ranks[p].String())
			}
			fmt.Fprintf(&b, "   %s\n", strings.Join(parts, "; "))
		}
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, "\n", " ")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
