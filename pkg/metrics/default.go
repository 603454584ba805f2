//go:build !metrics

package metrics

// NewDefault returns the collector for the current build: a no-op collector
// unless built with -tags metrics.
func NewDefault() Collector {
	return NewNoopCollector()
}
