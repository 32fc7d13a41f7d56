package indicator

import (
	"fmt"

	"github.com/raykavin/backreplay/pkg/core"
	"github.com/raykavin/backreplay/pkg/plot"

	"github.com/markcheno/go-talib"
)

// SMA creates a new Simple Moving Average overlay indicator
func SMA(period int, color string) plot.Indicator {
	return &sma{
		BaseIndicator: BaseIndicator{
			Period: period,
			Color:  color,
		},
	}
}

type sma struct {
	BaseIndicator
	Values core.Series[float64]
}

func (s sma) Warmup() int {
	return s.Period
}

func (s sma) Name() string {
	return fmt.Sprintf("SMA(%d)", s.Period)
}

func (s sma) Overlay() bool {
	return true
}

func (s *sma) Load(dataframe *core.Dataframe) {
	if !ValidateDataframe(dataframe, s.Period) {
		return
	}

	values := talib.Sma(dataframe.Close, s.Period)
	s.Values, s.Time = TrimData(values, dataframe.Time, s.Period)
}

func (s sma) Metrics() []plot.IndicatorMetric {
	return []plot.IndicatorMetric{
		CreateMetric("line", s.Color, s.Values, s.Time),
	}
}
