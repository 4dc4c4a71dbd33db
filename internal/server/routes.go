package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/interest/internal/engine"
	"github.com/lazypower/interest/internal/store"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string   `json:"id"`
		Text   string   `json:"text"`
		Topics []string `json:"topics"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}

	topics := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			topics = append(topics, t)
		}
	}
	c := store.Content{ID: req.ID, Text: req.Text, Topics: topics}
	if err := s.engine.DB.PutContent(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stored, err := s.engine.DB.GetContent(r.Context(), req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var in engine.Interaction
	if !s.decode(w, r, &in) {
		return
	}
	if in.Timestamp == 0 {
		in.Timestamp = s.engine.Now()
	}

	res, err := s.engine.Record(r.Context(), in)
	writeJSON(w, recordStatus(err), res)
}

func recordStatus(err error) int {
	var verr *engine.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrContentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleRecordBatch(w http.ResponseWriter, r *http.Request) {
	var batch []engine.Interaction
	if !s.decode(w, r, &batch) {
		return
	}
	now := s.engine.Now()
	for i := range batch {
		if batch[i].Timestamp == 0 {
			batch[i].Timestamp = now
		}
	}

	results := s.engine.RecordBatch(r.Context(), batch)
	rejected := 0
	for _, res := range results {
		if res.State == engine.Rejected {
			rejected++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":  results,
		"count":    len(results),
		"rejected": rejected,
	})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	scores, err := s.engine.Scores(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"scores":  scores,
		"count":   len(scores),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.Activity(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleDecayUser(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.DecayUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	topic := strings.ToLower(chi.URLParam(r, "topic"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rels, err := s.engine.Graph.Related(r.Context(), topic, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type neighbor struct {
		Topic         string  `json:"topic"`
		Weight        float64 `json:"weight"`
		CoOccurrences int64   `json:"co_occurrences"`
	}
	out := make([]neighbor, 0, len(rels))
	for _, rel := range rels {
		out = append(out, neighbor{Topic: rel.Other(topic), Weight: rel.Weight, CoOccurrences: rel.CoOccurrences})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":   topic,
		"related": out,
	})
}

func (s *Server) handleRelationship(w http.ResponseWriter, r *http.Request) {
	a := strings.ToLower(r.URL.Query().Get("a"))
	b := strings.ToLower(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "a and b required")
		return
	}
	rel, err := s.engine.Graph.Find(r.Context(), a, b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rel == nil {
		writeError(w, http.StatusNotFound, "no relationship")
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleMaintainGraph(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.MaintainGraph(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
