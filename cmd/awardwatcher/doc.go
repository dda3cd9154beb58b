// Package main hosts the award watcher entrypoint.
//
// Architecture overview:
//   - Extractor: internal/fetcher/headless drives one Chrome tab through chromedp, reusing it across every
//     origin/date key of a sweep and reporting each fetch as a tagged result (ok, timeout, missing element,
//     session fault, unexpected).
//   - Store: internal/store/file keeps the best value per key in a JSON document that is replaced atomically on
//     every sweep; internal/store/gcs can mirror each saved snapshot to a bucket.
//   - Alerts: internal/alert fans a new low below the threshold out to email, Pushover and Pub/Sub. Channels are
//     independent; one failing never blocks another.
//   - Loop: internal/monitor runs sweep, persist, alert and wait forever. Only a sweep fault (repeated session
//     faults, a failed browser launch or a panic) discards the browser session.
//   - Plumbing: Viper loads config from file and AWARD_* env vars; zap logs; Prometheus metrics and the stored
//     document are served by the optional status server in internal/api.
//
// Quick checklist:
//   - Configure origins, dates and threshold under monitor.*, and enable at least one alert channel.
//   - Run locally: go run ./cmd/awardwatcher --config config.yaml (or rely solely on env overrides).
//   - Ctrl-C or SIGTERM stops the loop after closing the browser; the exit status is 0.
package main
