package provision

import (
	"strconv"
	"strings"
	"time"

	"github.com/docet-dev/docet/internal/core/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filter narrows an assistant list
type Filter struct {
	Query    string    // substring of the assistant id
	Source   string    // substring of the source URL
	After    time.Time // only assistants updated after this instant
	HasAfter bool
	MinDocs  int
}

// ParseFilter extracts filters from a query string.
// Supports:
//   - source:<text> - source URL contains text
//   - after:yesterday, after:3-days-ago, after:2024-11-01 - updated after a date
//   - docs:<n> - at least n documents
//
// Remaining words match the assistant id.
func ParseFilter(query string, now time.Time) Filter {
	var f Filter
	var queryParts []string

	for _, token := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(token, "source:"):
			f.Source = strings.TrimPrefix(token, "source:")
		case strings.HasPrefix(token, "after:"):
			if parsed, ok := ParseDate(strings.TrimPrefix(token, "after:"), now); ok {
				f.After = parsed
				f.HasAfter = true
			}
		case strings.HasPrefix(token, "docs:"):
			if n, err := strconv.Atoi(strings.TrimPrefix(token, "docs:")); err == nil && n > 0 {
				f.MinDocs = n
			}
		default:
			queryParts = append(queryParts, token)
		}
	}

	f.Query = strings.Join(queryParts, " ")
	return f
}

// Empty reports whether the filter matches everything
func (f Filter) Empty() bool {
	return f.Query == "" && f.Source == "" && !f.HasAfter && f.MinDocs == 0
}

// Apply returns the assistants matching every set criterion, preserving order.
// Assistants with an unknown update time never match an after: filter.
func (f Filter) Apply(list []models.AssistantSummary) []models.AssistantSummary {
	out := make([]models.AssistantSummary, 0, len(list))
	query := strings.ToLower(f.Query)
	source := strings.ToLower(f.Source)

	for _, a := range list {
		if query != "" && !strings.Contains(strings.ToLower(a.AssistantID), query) {
			continue
		}
		if source != "" && !strings.Contains(strings.ToLower(a.SourceURL), source) {
			continue
		}
		if a.DocumentCount < f.MinDocs {
			continue
		}
		if f.HasAfter {
			updated, ok := parseLastUpdated(a.LastUpdated)
			if !ok || !updated.After(f.After) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// ParseDate parses natural language ("2 days ago", "yesterday") or a standard date layout.
// Query tokens cannot hold spaces, so "3-days-ago" is accepted too.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "-ago") {
		s = strings.ReplaceAll(s, "-", " ")
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	if result, err := w.Parse(s, now); err == nil && result != nil {
		return result.Time, true
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseLastUpdated(s string) (time.Time, bool) {
	if s == "" || s == models.Unknown {
		return time.Time{}, false
	}
	layouts := []string{"2006-01-02 15:04", time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
