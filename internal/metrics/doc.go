// Package metrics defines all Prometheus metrics for the photo tagger
// and an optional scrape listener.
//
// Metrics are declared as package-level variables using promauto, which
// registers them with the default registry at init time.
package metrics
