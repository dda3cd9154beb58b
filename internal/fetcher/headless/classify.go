package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// detailLimit bounds the error text carried on a failed FetchResult.
const detailLimit = 100

// sessionFaultMarkers are fragments of driver errors that mean the browser
// connection itself is unusable.
var sessionFaultMarkers = []string{
	"receiving message from renderer",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
}

// classify maps a chromedp failure onto an extraction outcome.
func classify(err error, browserGone bool) points.Outcome {
	if err == nil {
		return points.OutcomeOK
	}
	if browserGone {
		return points.OutcomeSessionFault
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, chromedp.ErrPollingTimeout):
		return points.OutcomeTimeout
	case errors.Is(err, chromedp.ErrInvalidContext),
		errors.Is(err, chromedp.ErrInvalidTarget),
		errors.Is(err, chromedp.ErrChannelClosed),
		errors.Is(err, chromedp.ErrInvalidWebsocketMessage):
		return points.OutcomeSessionFault
	case errors.Is(err, chromedp.ErrNoResults):
		return points.OutcomeMissingElement
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range sessionFaultMarkers {
		if strings.Contains(msg, marker) {
			return points.OutcomeSessionFault
		}
	}
	return points.OutcomeUnexpected
}

// extractText returns the trimmed text of the first node matching selector.
func extractText(html, selector string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(sel.Text()), true, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type flag struct {
	name  string
	value any
}

// flags lists the Chrome switches used for every session.
func flags(cfg Config) []flag {
	out := []flag{
		{"headless", cfg.Headless},
		{"incognito", true},
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"disable-gpu", true},
		{"disable-software-rasterizer", true},
		{"disable-extensions", true},
		{"disable-background-networking", true},
		{"disable-backgrounding-occluded-windows", true},
		{"disable-default-apps", true},
		{"disable-sync", true},
		{"metrics-recording-only", true},
		{"mute-audio", true},
		{"no-first-run", true},
		{"safebrowsing-disable-auto-update", true},
		{"enable-automation", false},
		{"disable-blink-features", "AutomationControlled"},
	}
	if !cfg.Headless {
		out = append(out, flag{"start-maximized", true})
	}
	return out
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range flags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
