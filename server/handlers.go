package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genops-ai/genops-go"
	"github.com/genops-ai/genops-go/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": genops.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.client.Status(r.Context()))
}

func (s *Server) handleSpend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.client.Summary())
}

func (s *Server) handleListPolicies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.client.Policies())
}

func (s *Server) handleRegisterPolicy(w http.ResponseWriter, r *http.Request) {
	var def models.PolicyDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid policy payload", nil)
		return
	}
	if def.CreatedAt.IsZero() {
		def = models.NewPolicyDefinition(def.Name, def.Enforcement, def.Conditions)
	}
	if err := s.client.RegisterPolicy(def); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleUnregisterPolicy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.client.UnregisterPolicy(name) {
		writeError(w, http.StatusNotFound, "not_found", "policy not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	states, err := s.client.Budgets(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var def models.BudgetDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid budget payload", nil)
		return
	}
	if err := s.client.SetBudget(r.Context(), def); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	state, err := s.client.GetBudget(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleResetBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.client.ResetBudget(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps the SDK error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	errType := genops.GetErrorType(err)
	status := http.StatusInternalServerError
	switch errType {
	case genops.ErrorTypeNotFound:
		status = http.StatusNotFound
	case genops.ErrorTypeValidation:
		status = http.StatusBadRequest
	case genops.ErrorTypeConflict:
		status = http.StatusConflict
	case genops.ErrorTypeRateLimit:
		status = http.StatusTooManyRequests
	case genops.ErrorTypePolicyViolation:
		status = http.StatusForbidden
	}
	code := string(errType)
	if code == "" {
		code = "internal"
	}
	writeError(w, status, code, err.Error(), genops.GetErrorDetails(err))
}
