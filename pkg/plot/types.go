package plot

import (
	"github.com/raykavin/backreplay/pkg/core"
)

// Candle is the JSON shape pushed to the chart engine. Times are canonical
// epoch milliseconds; the series is always sorted ascending before a push,
// since out-of-order points corrupt rendering.
type Candle struct {
	Time   core.Timestamp `json:"time"`
	Open   float64        `json:"open"`
	Close  float64        `json:"close"`
	High   float64        `json:"high"`
	Low    float64        `json:"low"`
	Volume float64        `json:"volume"`
}

// Marker is a trade annotation rendered on the price series
type Marker struct {
	Time  core.Timestamp `json:"time"`
	Price float64        `json:"price"`
	Side  core.Side      `json:"side"`
	Label string         `json:"label,omitempty"`
}

// Overlay is one persistent line series keyed by a stable ID. An overlay
// whose ID disappears from the next update is explicitly removed from the
// chart; the chart engine does not garbage-collect stale series on its own.
type Overlay struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Color  string           `json:"color"`
	Style  string           `json:"style"`
	Times  []core.Timestamp `json:"times"`
	Values []float64        `json:"values"`
}

// AssetValue represents a point in time value of an asset
type AssetValue struct {
	Time  core.Timestamp `json:"time"`
	Value float64        `json:"value"`
}

// playbackStatus is the JSON serializable playback state
type playbackStatus struct {
	Index   int   `json:"index"`
	Total   int   `json:"total"`
	Playing bool  `json:"playing"`
	SpeedMs int64 `json:"speed_ms"`
}
