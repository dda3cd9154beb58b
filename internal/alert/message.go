package alert

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// Subject is the email subject line for an event.
func Subject(event points.AlertEvent) string {
	return "Low Points Alert: " + event.Key.String()
}

// EmailBody renders the plain-text email body.
func EmailBody(event points.AlertEvent) string {
	var b strings.Builder
	b.WriteString("Low points alert!\n\n")
	writeDetails(&b, event)
	b.WriteString("\nCheck the Azul website for booking.\n")
	return b.String()
}

// PushTitle is the push notification title for an event.
func PushTitle(event points.AlertEvent) string {
	return "FLIGHT ALERT: " + event.Key.String()
}

// PushMessage renders the push notification body.
func PushMessage(event points.AlertEvent) string {
	var b strings.Builder
	b.WriteString("New lower value found!\n\n")
	writeDetails(&b, event)
	return strings.TrimRight(b.String(), "\n")
}

func writeDetails(b *strings.Builder, event points.AlertEvent) {
	fmt.Fprintf(b, "Origin: %s\n", event.Key.Origin)
	fmt.Fprintf(b, "Date: %s\n", event.Key.Date)
	fmt.Fprintf(b, "Points: %s\n", event.Point.RawText)
	fmt.Fprintf(b, "Threshold: %s\n", humanize.Comma(event.Threshold))
}
