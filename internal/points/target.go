package points

import (
	"fmt"
	"strings"
)

// Target describes the single page template being monitored.
type Target struct {
	// URLTemplate contains {origin}, {destination} and {date} placeholders.
	URLTemplate string
	Destination string
	// Selector is the CSS selector of the rendered points node.
	Selector string
}

// Validate checks that the template can address a key.
func (t Target) Validate() error {
	if strings.TrimSpace(t.URLTemplate) == "" {
		return fmt.Errorf("url template is required")
	}
	if !strings.Contains(t.URLTemplate, "{origin}") || !strings.Contains(t.URLTemplate, "{date}") {
		return fmt.Errorf("url template must contain {origin} and {date}")
	}
	if strings.TrimSpace(t.Selector) == "" {
		return fmt.Errorf("price selector is required")
	}
	return nil
}

// URL substitutes key and destination into the template.
func (t Target) URL(key Key) string {
	return strings.NewReplacer(
		"{origin}", key.Origin,
		"{destination}", t.Destination,
		"{date}", key.Date,
	).Replace(t.URLTemplate)
}
