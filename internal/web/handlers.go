package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
)

// maxValidateBody caps the JSON body of the stateless validation endpoint.
const maxValidateBody = 32 << 20

type healthResponse struct {
	Status   string                  `json:"status"`
	Sessions int                     `json:"sessions"`
	Uploads  core.BatchLimiterStatus `json:"uploads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.store.Len(),
		Uploads:  s.limiter.Status(),
	})
}

type validateRequest struct {
	Tables []core.Table `json:"tables"`
}

type findingsResponse struct {
	Findings []core.Finding `json:"findings"`
	Summary  core.Summary   `json:"summary"`
}

func newFindingsResponse(findings []core.Finding) findingsResponse {
	if findings == nil {
		findings = []core.Finding{}
	}
	return findingsResponse{Findings: findings, Summary: core.Summarize(findings)}
}

// handleValidate runs the engine over caller-supplied tables without
// touching any session.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, maxValidateBody, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	start := time.Now()
	findings := s.engine.Validate(req.Tables)
	s.metrics.ObserveValidation(findings, time.Since(start))

	writeJSON(w, http.StatusOK, newFindingsResponse(findings))
}

// decodeJSON reads one JSON document of at most limit bytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}
