package handler

import (
	"encoding/json"
	"net/http"

	"agentsurvey/internal/model"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/rest/middleware"

	"github.com/gorilla/mux"
)

// SurveyHandler handles survey endpoints
type SurveyHandler struct {
	surveySvc *service.SurveyService
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(surveySvc *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveySvc: surveySvc}
}

// SurveyRequest is the request body for creating or replacing a survey
type SurveyRequest struct {
	Title        string              `json:"title"`
	Questions    []model.Question    `json:"questions"`
	MemoryPlan   model.MemoryPlan    `json:"memoryPlan,omitempty"`
	Instructions []model.Instruction `json:"instructions,omitempty"`
}

func (req *SurveyRequest) survey(id string) *model.Survey {
	return &model.Survey{
		ID:           id,
		Title:        req.Title,
		Questions:    req.Questions,
		MemoryPlan:   req.MemoryPlan,
		Instructions: req.Instructions,
	}
}

// Create handles POST /v1/surveys
func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.surveySvc.Create(r.Context(), operatorID, req.survey(""))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"surveyId": id})
}

// Update handles PUT /v1/surveys/{surveyId}
func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]
	operatorID := middleware.GetOperatorID(r.Context())
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	survey := req.survey(surveyID)
	if err := h.surveySvc.Update(r.Context(), operatorID, survey); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// Get handles GET /v1/surveys/{surveyId}
func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	survey, err := h.surveySvc.Get(r.Context(), middleware.GetOperatorID(r.Context()), surveyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// List handles GET /v1/surveys
func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())
	if operatorID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	surveys, err := h.surveySvc.List(r.Context(), operatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"surveys": surveys})
}

// Delete handles DELETE /v1/surveys/{surveyId}
func (h *SurveyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	if err := h.surveySvc.Delete(r.Context(), middleware.GetOperatorID(r.Context()), surveyID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
