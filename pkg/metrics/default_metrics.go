//go:build metrics

package metrics

// NewDefault returns the Prometheus-backed collector when built with
// -tags metrics.
func NewDefault() Collector {
	return NewCollector()
}
