// Package api exposes the read-only REST surface over the market, plus
// the murder-event hook the host game posts to.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
	"github.com/ndrandal/stocksim/internal/feed"
	"github.com/ndrandal/stocksim/internal/news"
)

// Clock reports the market's current in-game time.
type Clock interface {
	Now() time.Time
}

// Server provides REST API endpoints over the simulation.
type Server struct {
	market  *engine.Market
	news    *news.Generator
	mgr     *feed.Manager
	clock   Clock
	startAt time.Time
}

// NewServer creates a new API server.
func NewServer(market *engine.Market, ng *news.Generator, mgr *feed.Manager, clock Clock) *Server {
	return &Server{
		market:  market,
		news:    ng,
		mgr:     mgr,
		clock:   clock,
		startAt: time.Now(),
	}
}

// Register attaches API routes to the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stocks", s.handleStocks)
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStockDetail)
	mux.HandleFunc("GET /api/stocks/{symbol}/history", s.handleStockHistory)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/events/murder", s.handleMurder)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolveSymbol looks up a stock's state by ticker, writing a 404 if not
// found. The bool result reports success.
func (s *Server) resolveSymbol(w http.ResponseWriter, symbol string) (engine.StockState, bool) {
	states, _ := s.market.SnapshotStates()
	for _, st := range states {
		if st.Symbol == symbol {
			return st, true
		}
	}
	writeError(w, http.StatusNotFound, "symbol not found: "+symbol)
	return engine.StockState{}, false
}
