package plot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleHealth handles health check requests
func (c *Chart) handleHealth(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	lastUpdate := c.lastUpdate
	c.Unlock()

	if lastUpdate.IsZero() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, lastUpdate.Format(time.RFC3339))
}

// handleIndex handles the main page request
func (c *Chart) handleIndex(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	symbol := ""
	timeframe := ""
	if c.result != nil {
		symbol = c.result.Symbol
		timeframe = c.result.Timeframe
	}
	c.Unlock()

	w.Header().Set("Content-Type", "text/html")
	err := c.indexHTML.Execute(w, map[string]any{
		"symbol":    symbol,
		"timeframe": timeframe,
	})
	if err != nil {
		c.log.WithError(err).Error("template execution failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleData handles full chart data requests: the complete normalized candle
// window plus markers, overlays, equity curve and playback state.
func (c *Chart) handleData(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	c.Lock()
	symbol := ""
	if c.result != nil {
		symbol = c.result.Symbol
	}
	response := map[string]any{
		"symbol":   symbol,
		"candles":  c.candleDataLocked(),
		"markers":  c.markersLocked(),
		"overlays": c.overlaysLocked(),
		"equity":   c.equityDataLocked(),
		"playback": c.statusPayload(),
	}
	c.Unlock()

	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.log.WithError(err).Error("json encoding failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleSnapshot returns the reconstructed account state at the current cursor
func (c *Chart) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	reconstructor := c.reconstructor
	c.Unlock()

	if reconstructor == nil || c.controller == nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}

	snapshot, err := reconstructor.At(c.controller.Index())
	if err != nil {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		c.log.WithError(err).Error("json encoding failed")
	}
}

// handlePlayback drives the playback controller:
// POST /playback?action=play|pause|step|scrub|speed[&delta=..][&index=..][&ms=..]
func (c *Chart) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if c.controller == nil {
		http.Error(w, "no playback session", http.StatusNotFound)
		return
	}

	switch r.URL.Query().Get("action") {
	case "play":
		c.controller.Play()
	case "pause":
		c.controller.Pause()
	case "step":
		delta, err := strconv.Atoi(r.URL.Query().Get("delta"))
		if err != nil {
			http.Error(w, "invalid delta", http.StatusBadRequest)
			return
		}
		c.controller.Step(delta)
	case "scrub":
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
		c.controller.Scrub(index)
	case "speed":
		ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
		if err != nil || ms <= 0 {
			http.Error(w, "invalid speed", http.StatusBadRequest)
			return
		}
		c.controller.SetSpeed(time.Duration(ms) * time.Millisecond)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.statusPayload()); err != nil {
		c.log.WithError(err).Error("json encoding failed")
	}
}

// handleTradingHistoryData handles CSV export of the trade ledger
func (c *Chart) handleTradingHistoryData(w http.ResponseWriter, _ *http.Request) {
	c.Lock()
	result := c.result
	c.Unlock()

	if result == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=trades_"+result.Symbol+".csv")

	buffer := bytes.NewBuffer(nil)
	csvWriter := csv.NewWriter(buffer)

	if err := csvWriter.Write([]string{
		"id", "symbol", "side", "entry_time", "exit_time",
		"entry_price", "exit_price", "quantity", "profit",
	}); err != nil {
		c.log.WithError(err).Error("failed writing csv header")
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	for _, t := range result.Trades {
		exitTime, exitPrice := "", ""
		if t.ExitTime != nil {
			exitTime = strconv.FormatInt(int64(*t.ExitTime), 10)
		}
		if t.ExitPrice != nil {
			exitPrice = strconv.FormatFloat(*t.ExitPrice, 'f', -1, 64)
		}

		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Symbol,
			string(t.Side),
			strconv.FormatInt(int64(t.EntryTime), 10),
			exitTime,
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			exitPrice,
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.Profit, 'f', 2, 64),
		}
		if err := csvWriter.Write(row); err != nil {
			c.log.WithError(err).Error("failed writing csv row")
			http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
			return
		}
	}
	csvWriter.Flush()

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buffer.Bytes()); err != nil {
		c.log.WithError(err).Error("failed writing csv response")
	}
}
