package handler

import (
	"encoding/json"
	"net/http"

	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// AdministrationHandler handles prompt previews, single administrations and results
type AdministrationHandler struct {
	adminSvc   *service.AdministrationService
	surveySvc  *service.SurveyService
	resultRepo repository.ResultRepo
}

// NewAdministrationHandler creates a new administration handler
func NewAdministrationHandler(adminSvc *service.AdministrationService, surveySvc *service.SurveyService, resultRepo repository.ResultRepo) *AdministrationHandler {
	return &AdministrationHandler{
		adminSvc:   adminSvc,
		surveySvc:  surveySvc,
		resultRepo: resultRepo,
	}
}

func decodeAdministration(w http.ResponseWriter, r *http.Request) (*service.AdministrationRequest, bool) {
	var req service.AdministrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.QuestionName == "" {
		writeError(w, http.StatusBadRequest, "questionName is required")
		return nil, false
	}
	return &req, true
}

// Prompts handles POST /v1/surveys/{surveyId}/prompts
func (h *AdministrationHandler) Prompts(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAdministration(w, r)
	if !ok {
		return
	}

	prompts, err := h.adminSvc.Prompts(r.Context(), middleware.GetOperatorID(r.Context()), mux.Vars(r)["surveyId"], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompts)
}

// Administer handles POST /v1/surveys/{surveyId}/administrations
func (h *AdministrationHandler) Administer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAdministration(w, r)
	if !ok {
		return
	}

	result, err := h.adminSvc.Administer(r.Context(), middleware.GetOperatorID(r.Context()), mux.Vars(r)["surveyId"], req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetResult handles GET /v1/results/{resultId}
func (h *AdministrationHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.resultRepo.GetByID(r.Context(), mux.Vars(r)["resultId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	// results are visible through the survey they belong to
	if _, err := h.surveySvc.Get(r.Context(), middleware.GetOperatorID(r.Context()), result.SurveyID); err != nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
