package handler

import (
	"encoding/json"
	"net/http"

	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

const maxRunAdministrations = 10000

// RunHandler handles survey runs
type RunHandler struct {
	surveySvc  *service.SurveyService
	runner     *service.Runner
	runRepo    repository.RunRepo
	resultRepo repository.ResultRepo
}

// NewRunHandler creates a new run handler
func NewRunHandler(surveySvc *service.SurveyService, runner *service.Runner, runRepo repository.RunRepo, resultRepo repository.ResultRepo) *RunHandler {
	return &RunHandler{
		surveySvc:  surveySvc,
		runner:     runner,
		runRepo:    runRepo,
		resultRepo: resultRepo,
	}
}

// Start handles POST /v1/surveys/{surveyId}/runs
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())

	var req service.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	survey, err := h.surveySvc.Get(r.Context(), operatorID, mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	size := max(len(req.Agents), 1) * max(len(req.Scenarios), 1) * max(req.Iterations, 1) * len(survey.Questions)
	if size > maxRunAdministrations {
		writeError(w, http.StatusBadRequest, "run is too large")
		return
	}

	run, err := h.runner.Start(r.Context(), survey, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

// Get handles GET /v1/runs/{runId}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.runRepo.GetByID(r.Context(), mux.Vars(r)["runId"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil || run.OwnerID != middleware.GetOperatorID(r.Context()) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Results handles GET /v1/runs/{runId}/results
func (h *RunHandler) Results(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	run, err := h.runRepo.GetByID(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil || run.OwnerID != middleware.GetOperatorID(r.Context()) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	results, err := h.resultRepo.GetByRunID(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "results": results})
}
