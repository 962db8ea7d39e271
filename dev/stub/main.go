// Command stub is a local stand-in for the TimeTrack collector. Point
// api_url at it to watch what the agent sends.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

var knownActions = map[string]bool{
	api.ActionScreenshot: true,
	api.ActionIdleStart:  true,
	api.ActionIdleEnd:    true,
	api.ActionHeartbeat:  true,
}

type request struct {
	Action string          `json:"action"`
	UserID string          `json:"user_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newHandler(apiKey string, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || (apiKey != "" && token != apiKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
			return
		}
		if req.UserID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id required"})
			return
		}
		if !knownActions[req.Action] {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown action"})
			return
		}

		log.Info("report",
			zap.String("action", req.Action),
			zap.String("user_id", req.UserID),
			zap.Int("data_bytes", len(req.Data)),
			zap.String("ua", r.UserAgent()),
			zap.Time("ts", time.Now().UTC()))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": nil})
	})
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "listen address")
	apiKey := flag.String("api-key", "", "accept only this bearer token (any non-empty token if unset)")
	flag.Parse()

	log, err := logger.New(logger.LoggingConfig{Level: "info", Format: "console"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("mock collector listening", zap.String("url", "http://"+*addr))
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newHandler(*apiKey, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Error("mock collector stopped", zap.Error(err))
	}
}
