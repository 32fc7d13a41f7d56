package plot

import (
	"fmt"
	"time"

	"github.com/raykavin/backreplay/pkg/core"
)

// IndicatorMetric represents a single line within an indicator
type IndicatorMetric struct {
	Name   string
	Color  string
	Style  string
	Values core.Series[float64]
	Time   []time.Time
}

// Indicator defines the methods required to draw a chart indicator
type Indicator interface {
	Name() string
	Overlay() bool
	Warmup() int
	Metrics() []IndicatorMetric
	Load(dataframe *core.Dataframe)
}

// overlaysLocked computes the overlay lines for the current candle window.
// Overlay IDs are stable across updates: indicator name plus metric name.
func (c *Chart) overlaysLocked() []Overlay {
	if c.dataframe == nil {
		return []Overlay{}
	}

	overlays := make([]Overlay, 0, len(c.indicators))

	for _, indicator := range c.indicators {
		indicator.Load(c.dataframe)

		if !indicator.Overlay() {
			continue
		}

		for _, metric := range indicator.Metrics() {
			id := indicator.Name()
			if metric.Name != "" {
				id = fmt.Sprintf("%s/%s", indicator.Name(), metric.Name)
			}

			times := make([]core.Timestamp, 0, len(metric.Time))
			for _, t := range metric.Time {
				times = append(times, core.Timestamp(t.UnixMilli()))
			}

			overlays = append(overlays, Overlay{
				ID:     id,
				Name:   indicator.Name(),
				Color:  metric.Color,
				Style:  metric.Style,
				Times:  times,
				Values: metric.Values,
			})
		}
	}

	return overlays
}
