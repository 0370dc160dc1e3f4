package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/model"
	"agentsurvey/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingResults struct {
	repository.ResultRepo
	err error
}

func (r failingResults) Insert(context.Context, *model.AdministrationResult) error {
	return r.err
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages map[string]int
	closed   chan string
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{messages: map[string]int{}, closed: make(chan string, 1)}
}

func (b *recordingBroadcaster) BroadcastToRun(_ string, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[msgType]++
}

func (b *recordingBroadcaster) CloseRun(runID string) {
	b.closed <- runID
}

func (b *recordingBroadcaster) count(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[msgType]
}

func petSurvey() *model.Survey {
	return &model.Survey{
		Title: "Pets",
		Questions: []model.Question{
			{Name: "pets", Text: "How many pets do you have?", Type: model.QuestionTypeNumerical, MinValue: 0, MaxValue: 10},
			{Name: "twice", Text: "What is twice {{ pets.answer }}?", Type: model.QuestionTypeNumerical},
		},
	}
}

func TestAuthService(t *testing.T) {
	auth := NewAuthService(&config.Config{OperatorUsername: "admin", OperatorPassword: "pw", JWTSecret: "secret"})

	_, err := auth.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.Login("admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, OperatorID("admin"), resp.OperatorID)

	claims, err := auth.ValidateOperatorToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.OperatorID, claims.OperatorID)

	again, err := auth.Login("admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, resp.OperatorID, again.OperatorID, "operator id is stable across logins")

	other := NewAuthService(&config.Config{OperatorUsername: "admin", OperatorPassword: "pw", JWTSecret: "other"})
	_, err = other.ValidateOperatorToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = auth.ValidateOperatorToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSurveyServiceCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewSurveyService(repository.NewMemoryStore().Surveys(), nil)

	id, err := svc.Create(ctx, "op_1", petSurvey())
	require.NoError(t, err)

	got, err := svc.Get(ctx, "op_1", id)
	require.NoError(t, err)
	assert.Equal(t, "op_1", got.OwnerID)

	_, err = svc.Get(ctx, "op_2", id)
	assert.True(t, errs.Is(err, errs.CategoryNotFound))

	list, err := svc.List(ctx, "op_1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	updated := petSurvey()
	updated.ID = id
	updated.Title = "Animals"
	require.NoError(t, svc.Update(ctx, "op_1", updated))
	got, _ = svc.Get(ctx, "op_1", id)
	assert.Equal(t, "Animals", got.Title)
	assert.Equal(t, "op_1", got.OwnerID)

	assert.True(t, errs.Is(svc.Delete(ctx, "op_2", id), errs.CategoryNotFound))
	require.NoError(t, svc.Delete(ctx, "op_1", id))
	_, err = svc.Get(ctx, "op_1", id)
	assert.True(t, errs.Is(err, errs.CategoryNotFound))
}

func TestSurveyServiceRejectsInvalidSurveys(t *testing.T) {
	svc := NewSurveyService(repository.NewMemoryStore().Surveys(), nil)

	_, err := svc.Create(context.Background(), "op", &model.Survey{Title: "empty"})
	assert.Equal(t, "empty_survey", errs.CodeOf(err))

	bad := petSurvey()
	bad.Questions[0].Type = "essay"
	_, err = svc.Create(context.Background(), "op", bad)
	assert.True(t, errs.Is(err, errs.CategoryInvalidInput))

	dup := petSurvey()
	dup.Questions[1].Name = "pets"
	_, err = svc.Create(context.Background(), "op", dup)
	assert.Equal(t, "invalid_survey", errs.CodeOf(err))
}

func newAdministrationFixture(t *testing.T, reply string) (*AdministrationService, repository.ResultRepo, string) {
	t.Helper()
	store := repository.NewMemoryStore()
	surveys := NewSurveyService(store.Surveys(), nil)
	id, err := surveys.Create(context.Background(), "op", petSurvey())
	require.NoError(t, err)

	client := llm.NewClient(llm.NewStaticProvider(reply), nil, config.ModelPricing{}, nil)
	results := store.Results()
	return NewAdministrationService(surveys, client, cache.NewMemoryResponseCache(), results, nil), results, id
}

func TestAdministrationPromptsUseSuppliedAnswers(t *testing.T) {
	svc, _, id := newAdministrationFixture(t, "6")
	ctx := context.Background()

	p, err := svc.Prompts(ctx, "op", id, &AdministrationRequest{
		QuestionName: "twice",
		Answers:      map[string]PriorResponse{"pets": {Answer: float64(3)}},
	})
	require.NoError(t, err)
	assert.Contains(t, p.User, "What is twice 3?")

	p, err = svc.Prompts(ctx, "op", id, &AdministrationRequest{QuestionName: "twice"})
	require.NoError(t, err)
	assert.Contains(t, p.User, "What is twice ?")

	_, err = svc.Prompts(ctx, "op", id, &AdministrationRequest{QuestionName: "missing"})
	assert.Equal(t, "question_not_found", errs.CodeOf(err))
}

func TestAdministerPersistsResult(t *testing.T) {
	svc, results, id := newAdministrationFixture(t, "6\nthree doubled")
	res, err := svc.Administer(context.Background(), "op", id, &AdministrationRequest{
		QuestionName: "twice",
		Agent:        &model.Agent{Name: "ann", Traits: map[string]any{"age": float64(30)}},
		Answers:      map[string]PriorResponse{"pets": {Answer: 3}},
	})
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.Equal(t, int64(6), res.Answer)
	assert.Equal(t, "three doubled", res.Comment)
	assert.Equal(t, id, res.SurveyID)
	assert.Contains(t, res.Prompts.System, "'age': 30")
	stored, err := results.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestRunnerExecute(t *testing.T) {
	ctx := context.Background()
	provider := llm.NewStaticProvider("3")
	store := repository.NewMemoryStore()
	results, runs := store.Results(), store.Runs()
	bc := newRecordingBroadcaster()

	runner := NewRunner(RunnerOptions{
		Caller:      llm.NewClient(provider, nil, config.ModelPricing{}, nil),
		Cache:       cache.NewMemoryResponseCache(),
		RunRepo:     runs,
		ResultRepo:  results,
		Broadcaster: bc,
		Concurrency: 1,
	})

	survey := petSurvey()
	survey.ID = "s1"
	run, out, err := runner.Execute(ctx, survey, &RunRequest{
		Agents:     []model.Agent{{Name: "a"}, {Name: "b"}},
		Iterations: 2,
	})
	require.NoError(t, err)
	require.Len(t, out, 8)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 8, run.Total)
	assert.Equal(t, 8, run.Validated)
	// agents without traits share prompts, so the second agent hits the cache
	assert.Equal(t, 4, run.CacheHits)
	assert.Equal(t, 4, provider.Calls())
	assert.Equal(t, "test", run.Model)

	assert.Equal(t, "pets", out[0].QuestionName)
	assert.Equal(t, "twice", out[1].QuestionName)
	assert.Contains(t, out[1].Prompts.User, "What is twice 3?")
	assert.Equal(t, 1, out[2].Iteration)

	byRun, err := results.GetByRunID(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, byRun, 8)
	stored, _ := runs.GetByID(ctx, run.ID)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Equal(t, 8, bc.count(MsgAdministrationCompleted))
	assert.Equal(t, 1, bc.count(MsgRunCompleted))
	assert.Equal(t, run.ID, <-bc.closed)
}

func TestRunnerStoreFailureFailsRun(t *testing.T) {
	store := repository.NewMemoryStore()
	runner := NewRunner(RunnerOptions{
		Caller:     llm.NewClient(llm.NewStaticProvider("3"), nil, config.ModelPricing{}, nil),
		RunRepo:    store.Runs(),
		ResultRepo: failingResults{ResultRepo: store.Results(), err: errors.New("disk full")},
	})

	run, _, err := runner.Execute(context.Background(), petSurvey(), &RunRequest{})
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")
}

func TestRunnerStart(t *testing.T) {
	runs := repository.NewMemoryStore().Runs()
	bc := newRecordingBroadcaster()
	runner := NewRunner(RunnerOptions{
		Caller:      llm.NewClient(llm.NewStaticProvider("3"), nil, config.ModelPricing{}, nil),
		RunRepo:     runs,
		Broadcaster: bc,
		Concurrency: 4,
	})

	run, err := runner.Start(context.Background(), petSurvey(), &RunRequest{Iterations: 3})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	select {
	case id := <-bc.closed:
		assert.Equal(t, run.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	stored, _ := runs.GetByID(context.Background(), run.ID)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	assert.Equal(t, 6, stored.Total)
}
