package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/model"
	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	handler http.Handler
	runs    repository.RunRepo
	token   string
}

func newTestServer(t *testing.T, reply string) *testServer {
	t.Helper()
	cfg := &config.Config{OperatorUsername: "admin", OperatorPassword: "pw", JWTSecret: "secret"}
	store := repository.NewMemoryStore()
	client := llm.NewClient(llm.NewStaticProvider(reply), nil, config.ModelPricing{}, nil)
	responses := cache.NewMemoryResponseCache()
	hub := ws.NewHub(nil)

	surveys := service.NewSurveyService(store.Surveys(), nil)
	c := &Container{
		AuthService:           service.NewAuthService(cfg),
		SurveyService:         surveys,
		AdministrationService: service.NewAdministrationService(surveys, client, responses, store.Results(), nil),
		Runner: service.NewRunner(service.RunnerOptions{
			Caller:      client,
			Cache:       responses,
			RunRepo:     store.Runs(),
			ResultRepo:  store.Results(),
			Broadcaster: hub,
			Concurrency: 2,
		}),
		RunRepo:    store.Runs(),
		ResultRepo: store.Results(),
		WSHub:      hub,
	}
	s := &testServer{handler: NewRouter(c), runs: store.Runs()}

	rec := s.do(t, http.MethodPost, "/v1/auth/login", model.LoginRequest{Username: "admin", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	s.token = login.Token
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

const surveyBody = `{
  "title": "Moods",
  "questions": [
    {"name": "mood", "text": "How do you feel?", "type": "multiple_choice", "options": ["Good", "Bad"]},
    {"name": "why", "text": "Why do you feel {{ mood.answer }}?", "type": "free_text"}
  ]
}`

func (s *testServer) createSurvey(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/surveys", json.RawMessage(surveyBody))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out map[string]string
	decode(t, rec, &out)
	return out["surveyId"]
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t, "Good")

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.token = ""
	rec = s.do(t, http.MethodGet, "/v1/surveys", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/auth/login", model.LoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSurveyEndpoints(t *testing.T) {
	s := newTestServer(t, "Good")
	id := s.createSurvey(t)

	rec := s.do(t, http.MethodGet, "/v1/surveys/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var survey model.Survey
	decode(t, rec, &survey)
	assert.Equal(t, "Moods", survey.Title)
	assert.Len(t, survey.Questions, 2)

	rec = s.do(t, http.MethodGet, "/v1/surveys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Surveys []model.Survey `json:"surveys"`
	}
	decode(t, rec, &list)
	assert.Len(t, list.Surveys, 1)

	rec = s.do(t, http.MethodPost, "/v1/surveys", json.RawMessage(`{"title":"x","questions":[{"name":"q","text":"?","type":"essay"}]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody map[string]string
	decode(t, rec, &errBody)
	assert.Equal(t, "unknown_question_type", errBody["code"])

	rec = s.do(t, http.MethodGet, "/v1/surveys/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/v1/surveys/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/v1/surveys/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromptsAndAdministration(t *testing.T) {
	s := newTestServer(t, "Good\nI slept well.")
	id := s.createSurvey(t)

	rec := s.do(t, http.MethodPost, "/v1/surveys/"+id+"/prompts", map[string]interface{}{
		"questionName": "why",
		"answers":      map[string]interface{}{"mood": map[string]interface{}{"answer": "Good"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prompts model.Prompts
	decode(t, rec, &prompts)
	assert.Contains(t, prompts.User, "Why do you feel Good?")

	rec = s.do(t, http.MethodPost, "/v1/surveys/"+id+"/administrations", map[string]interface{}{
		"questionName": "mood",
		"agent":        map[string]interface{}{"name": "ann", "traits": map[string]interface{}{"age": 30}},
		"scenario":     map[string]interface{}{"weather": "sunny"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result model.AdministrationResult
	decode(t, rec, &result)
	assert.True(t, result.Validated)
	assert.Equal(t, "Good", result.Answer)
	assert.Equal(t, "I slept well.", result.Comment)

	rec = s.do(t, http.MethodGet, "/v1/results/"+result.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/surveys/"+id+"/prompts", map[string]interface{}{"questionName": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunEndpoints(t *testing.T) {
	s := newTestServer(t, "Good")
	id := s.createSurvey(t)

	rec := s.do(t, http.MethodPost, "/v1/surveys/"+id+"/runs", map[string]interface{}{
		"agents":     []map[string]interface{}{{"name": "a"}, {"name": "b", "traits": map[string]interface{}{"age": 40}}},
		"iterations": 2,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var run model.Run
	decode(t, rec, &run)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.Eventually(t, func() bool {
		stored, err := s.runs.GetByID(context.Background(), run.ID)
		return err == nil && stored != nil && stored.Status == model.RunStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	rec = s.do(t, http.MethodGet, "/v1/runs/"+run.ID+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Run     model.Run                    `json:"run"`
		Results []model.AdministrationResult `json:"results"`
	}
	decode(t, rec, &out)
	assert.Len(t, out.Results, 8)
	assert.Equal(t, 8, out.Run.Total)

	rec = s.do(t, http.MethodGet, "/v1/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/runs/unknown/results", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
