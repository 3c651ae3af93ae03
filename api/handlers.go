package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tokenlens/tokenlens/analysis"
	"github.com/tokenlens/tokenlens/token"
)

// analyzeResponse is the Result plus the screenshot bytes inlined as
// base64, since the artifact's raw bytes are excluded from JSON.
type analyzeResponse struct {
	*analysis.Result
	Image string `json:"image_base64,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// handleAnalyze runs one analysis: GET /api/v1/analyze?address=0x..&chain=eth
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	chain := r.URL.Query().Get("chain")

	result, err := s.analysisService.Analyze(r.Context(), address, chain)
	if err != nil {
		var validationErr *token.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:  validationErr.Detail,
				Reason: string(validationErr.Reason),
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	response := analyzeResponse{Result: result}
	if result.Capture != nil {
		response.Image = base64.StdEncoding.EncodeToString(result.Capture.PNG)
	}
	writeJSON(w, http.StatusOK, response)
}

// handleChains lists the supported chain table
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains := make(map[string]string, len(s.chains))
	for code, chain := range s.chains {
		chains[code] = chain.DisplayName
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chains": chains})
}

// handleHealth reports liveness and the time of the last finished analysis
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	lastAnalysis := s.lastAnalysis
	s.mu.RUnlock()

	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	if !lastAnalysis.IsZero() {
		health["last_analysis"] = lastAnalysis.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
