package server

import (
	"encoding/json"
	"net/http"

	"ragchat/internal/domain"
)

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer     string `json:"answer"`
	NeedsHuman bool   `json:"needs_human"`
}

type retrieveRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
	ContextWindow *int     `json:"context_window,omitempty"`
}

type retrieveResult struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

type retrieveResponse struct {
	Results []retrieveResult `json:"results"`
}

type reindexResponse struct {
	Chunks int `json:"chunks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.responder.Generate(r.Context(), req.Query)
	if err != nil {
		s.log.Printf("generate failed: %v", err)
		writeError(w, http.StatusBadGateway, "generation provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer.Text, NeedsHuman: answer.NeedsHuman})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	k := req.TopK
	if k <= 0 {
		k = s.opts.TopK
	}
	threshold := s.opts.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	window := s.opts.ContextWindow
	if req.ContextWindow != nil {
		window = *req.ContextWindow
	}

	var results []domain.Result
	var err error
	if window > 0 {
		results, err = s.retriever.RetrieveWithContext(r.Context(), req.Query, k, threshold, window)
	} else {
		results, err = s.retriever.Retrieve(r.Context(), req.Query, k, threshold)
	}
	if err != nil {
		s.log.Printf("retrieve failed: %v", err)
		writeError(w, http.StatusBadGateway, "embedding provider unavailable")
		return
	}

	resp := retrieveResponse{Results: make([]retrieveResult, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, retrieveResult{
			Text:       res.Chunk.Text,
			Source:     res.Chunk.Source,
			Similarity: res.Similarity,
			Distance:   res.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.Rebuild(r.Context())
	if err != nil {
		s.log.Printf("reindex failed: %v", err)
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	writeJSON(w, http.StatusOK, reindexResponse{Chunks: n})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.matcher.Snapshot())
}
