package grid

import "github.com/charmbracelet/bubbles/viewport"

// Metrics is a sample of page scroll state, in lines.
type Metrics struct {
	ScrollTop    int // First visible line
	ClientHeight int // Visible lines
	ScrollHeight int // Total lines of content
}

// Remaining returns how many content lines lie below the visible area.
func (m Metrics) Remaining() int {
	return m.ScrollHeight - (m.ScrollTop + m.ClientHeight)
}

// MetricsProvider supplies the page scroll state the detector samples.
type MetricsProvider interface {
	Metrics() Metrics
}

// MetricsFunc adapts a plain function to [MetricsProvider].
type MetricsFunc func() Metrics

// Metrics calls f.
func (f MetricsFunc) Metrics() Metrics { return f() }

// StaticMetrics is a [MetricsProvider] that always returns itself.
type StaticMetrics Metrics

// Metrics implements [MetricsProvider].
func (s StaticMetrics) Metrics() Metrics { return Metrics(s) }

// ViewportMetrics samples a bubbles viewport, which serves as the page for
// the whole grid.
func ViewportMetrics(vp viewport.Model) Metrics {
	return Metrics{
		ScrollTop:    vp.YOffset,
		ClientHeight: vp.Height,
		ScrollHeight: vp.TotalLineCount(),
	}
}
