package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
)

type stockInfo struct {
	ID         int     `json:"id"`
	CompanyID  int     `json:"companyId"`
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	RollingAvg float64 `json:"rollingAvg"`

	Trend *trendInfo `json:"trend,omitempty"`
}

type trendInfo struct {
	Percentage float64 `json:"percentage"`
	StartPrice float64 `json:"startPrice"`
	EndPrice   float64 `json:"endPrice"`
	Steps      int     `json:"steps"`
	Step       int     `json:"step"`
}

func stockToInfo(st engine.StockState) stockInfo {
	si := stockInfo{
		ID:         st.ID,
		CompanyID:  st.CompanyID,
		Name:       st.Name,
		Symbol:     st.Symbol,
		Price:      st.Price,
		Open:       st.Open,
		High:       st.High,
		Low:        st.Low,
		RollingAvg: st.RollingAvg,
	}
	if st.Trend != nil {
		si.Trend = &trendInfo{
			Percentage: st.Trend.Percentage,
			StartPrice: st.Trend.StartPrice,
			EndPrice:   st.Trend.EndPrice,
			Steps:      st.Trend.Steps,
			Step:       st.TrendStep,
		}
	}
	return si
}

// handleStocks returns the full roster with live prices.
func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	states, _ := s.market.SnapshotStates()
	out := make([]stockInfo, 0, len(states))
	for _, st := range states {
		out = append(out, stockToInfo(st))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStockDetail returns a single stock.
func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	st, ok := s.resolveSymbol(w, r.PathValue("symbol"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stockToInfo(st))
}

type historyEntry struct {
	Date  string   `json:"date"`
	Open  float64  `json:"open"`
	Close *float64 `json:"close"`
	High  float64  `json:"high"`
	Low   float64  `json:"low"`
}

// handleStockHistory returns the retained daily snapshots, oldest first.
func (s *Server) handleStockHistory(w http.ResponseWriter, r *http.Request) {
	st, ok := s.resolveSymbol(w, r.PathValue("symbol"))
	if !ok {
		return
	}

	out := make([]historyEntry, 0, len(st.History))
	for _, h := range st.History {
		out = append(out, historyEntry{
			Date:  h.Date.Format(time.DateOnly),
			Open:  h.Open,
			Close: h.Close,
			High:  h.High,
			Low:   h.Low,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type statsResponse struct {
	Uptime       string `json:"uptime"`
	GameTime     string `json:"gameTime"`
	MarketOpen   bool   `json:"marketOpen"`
	Initialized  bool   `json:"initialized"`
	Simulation   bool   `json:"simulation"`
	Stocks       int    `json:"stocks"`
	ActiveTrends int    `json:"activeTrends"`
	PendingNews  int    `json:"pendingNews"`
	Clients      int    `json:"clients"`
}

// handleStats returns runtime and simulation statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	states, _ := s.market.SnapshotStates()

	writeJSON(w, http.StatusOK, statsResponse{
		Uptime:       time.Since(s.startAt).Truncate(time.Second).String(),
		GameTime:     now.Format(time.RFC3339),
		MarketOpen:   s.market.IsOpen(now),
		Initialized:  s.market.Initialized(),
		Simulation:   s.market.Simulation(),
		Stocks:       len(states),
		ActiveTrends: s.market.ActiveTrends(),
		PendingNews:  s.news.Pending(),
		Clients:      s.mgr.ClientCount(),
	})
}

type murderRequest struct {
	CompanyID int     `json:"companyId"`
	MinPct    float64 `json:"minPct"`
	MaxPct    float64 `json:"maxPct"`
}

// handleMurder is the host-game hook: a reported murder at a company
// tanks its stock.
func (s *Server) handleMurder(w http.ResponseWriter, r *http.Request) {
	var req murderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MinPct == 0 && req.MaxPct == 0 {
		req.MinPct, req.MaxPct = -40, -15
	}
	if req.MinPct > req.MaxPct {
		writeError(w, http.StatusBadRequest, "minPct must not exceed maxPct")
		return
	}

	st, err := s.market.InjectTrend(req.CompanyID, req.MinPct, req.MaxPct, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	states, _ := s.market.SnapshotStates()
	for _, state := range states {
		if state.ID == st.ID {
			writeJSON(w, http.StatusOK, stockToInfo(state))
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "stock vanished after injection")
}
