package handler

import (
	"encoding/json"
	"net/http"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps a classified error to a status code
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.CategoryOf(err) {
	case errs.CategoryNotFound:
		status = http.StatusNotFound
	case errs.CategoryInvalidInput:
		status = http.StatusBadRequest
	case errs.CategoryRender, errs.CategoryResolution:
		status = http.StatusUnprocessableEntity
	case errs.CategoryModelCall:
		status = http.StatusBadGateway
	}

	body := map[string]string{"error": err.Error()}
	if code := errs.CodeOf(err); code != "" {
		body["code"] = code
	}
	if hint := errs.HintOf(err); hint != "" {
		body["hint"] = hint
	}
	writeJSON(w, status, body)
}
