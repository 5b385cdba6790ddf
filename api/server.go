// Package api provides the HTTP API server for tradebrief.
//
// It exposes liveness and read-only market snapshot endpoints so the
// bot can be probed and scripted against without going through Telegram.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/avralex/tradebrief/internal/analysis"
	"github.com/avralex/tradebrief/internal/bot"
	"github.com/avralex/tradebrief/internal/config"
	"github.com/avralex/tradebrief/internal/datasource"
	"github.com/avralex/tradebrief/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	market   datasource.MarketSource
	sessions *bot.Store
}

// NewServer creates a configured API server with all routes and middleware.
// sessions may be nil when the server runs without the chat front end.
func NewServer(cfg *config.Config, market datasource.MarketSource, sessions *bot.Store) *Server {
	srv := &Server{
		cfg:      cfg,
		market:   market,
		sessions: sessions,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot/{ticker}", s.handleSnapshot)
		r.Get("/ohlcv/{ticker}", s.handleOHLCV)
	})

	return r
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status": "ok",
		"source": s.market.Name(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.sessions != nil {
		data["active_chats"] = s.sessions.Len()
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ticker, tf, ok := s.tickerAndTimeframe(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	candles, err := s.market.History(ctx, ticker, tf)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	snap, err := analysis.BuildSnapshot(ticker, tf, candles)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    snap,
	})
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	ticker, tf, ok := s.tickerAndTimeframe(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	candles, err := s.market.History(ctx, ticker, tf)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    candles,
	})
}

// tickerAndTimeframe validates the ticker URL parameter and the optional
// timeframe query parameter (default 1d). On failure it writes the error
// response and returns ok=false.
func (s *Server) tickerAndTimeframe(w http.ResponseWriter, r *http.Request) (string, models.Timeframe, bool) {
	ticker, err := bot.ValidateTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}

	tfStr := r.URL.Query().Get("timeframe")
	if tfStr == "" {
		tfStr = "1d"
	}
	tf, ok := models.ParseTimeframe(strings.ToLower(tfStr))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown timeframe: "+tfStr)
		return "", "", false
	}
	return ticker, tf, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
