package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmuk/blogsearch/pkg/chat"
	"github.com/jmuk/blogsearch/pkg/session"
)

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	Turns     int    `json:"turns"`
	ToolCalls int    `json:"tool_calls"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"in_flight": s.inFlight.Load(),
		"served":    s.served.Load(),
	})
}

// handleAsk handles POST /v1/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body: " + err.Error()})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query is required"})
		return
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	ctx := r.Context()
	if id := chimw.GetReqID(ctx); id != "" {
		ctx = session.WithQueryID(ctx, id)
	}
	prompt := chat.BuildPrompt(s.cfg.PromptTemplate, s.cfg.Search.Site, query)
	res, err := chat.Run(ctx, prompt, s.runner, s.client, chat.OptionsFromConfig(s.cfg)...)
	s.served.Add(1)
	if err != nil {
		s.logger.Error("Query failed", "request_id", chimw.GetReqID(ctx), "query", query, "error", err)
		status := http.StatusBadGateway
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:    res.Answer,
		Turns:     res.Turns,
		ToolCalls: res.ToolCalls,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
