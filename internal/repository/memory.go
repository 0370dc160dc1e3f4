package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"agentsurvey/internal/model"

	"github.com/google/uuid"
)

// MemoryStore implements the survey, run and result repositories in process.
// It backs the CLI and tests; it is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	surveys map[string]*model.Survey
	runs    map[string]*model.Run
	results []*model.AdministrationResult
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		surveys: make(map[string]*model.Survey),
		runs:    make(map[string]*model.Run),
	}
}

// Surveys returns the store as a SurveyRepo
func (m *MemoryStore) Surveys() SurveyRepo { return memorySurveys{m} }

// Runs returns the store as a RunRepo
func (m *MemoryStore) Runs() RunRepo { return memoryRuns{m} }

// Results returns the store as a ResultRepo
func (m *MemoryStore) Results() ResultRepo { return memoryResults{m} }

type memorySurveys struct{ m *MemoryStore }

func (r memorySurveys) Create(_ context.Context, survey *model.Survey) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if survey.ID == "" {
		survey.ID = uuid.New().String()
	}
	survey.CreatedAt = time.Now()
	survey.UpdatedAt = survey.CreatedAt
	stored := *survey
	r.m.surveys[survey.ID] = &stored
	return survey.ID, nil
}

func (r memorySurveys) GetByID(_ context.Context, id string) (*model.Survey, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	s, ok := r.m.surveys[id]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (r memorySurveys) GetByOwnerID(_ context.Context, ownerID string) ([]*model.Survey, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	surveys := []*model.Survey{}
	for _, s := range r.m.surveys {
		if s.OwnerID == ownerID {
			out := *s
			surveys = append(surveys, &out)
		}
	}
	sort.Slice(surveys, func(i, j int) bool {
		return surveys[i].CreatedAt.After(surveys[j].CreatedAt)
	})
	return surveys, nil
}

func (r memorySurveys) Update(_ context.Context, survey *model.Survey) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.surveys[survey.ID]; !ok {
		return ErrNotFound
	}
	survey.UpdatedAt = time.Now()
	stored := *survey
	r.m.surveys[survey.ID] = &stored
	return nil
}

func (r memorySurveys) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.surveys, id)
	return nil
}

type memoryRuns struct{ m *MemoryStore }

func (r memoryRuns) Create(_ context.Context, run *model.Run) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *run
	r.m.runs[run.ID] = &stored
	return nil
}

func (r memoryRuns) GetByID(_ context.Context, id string) (*model.Run, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	run, ok := r.m.runs[id]
	if !ok {
		return nil, nil
	}
	out := *run
	return &out, nil
}

func (r memoryRuns) Update(_ context.Context, run *model.Run) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	stored := *run
	r.m.runs[run.ID] = &stored
	return nil
}

type memoryResults struct{ m *MemoryStore }

func (r memoryResults) Insert(_ context.Context, result *model.AdministrationResult) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.results = append(r.m.results, result)
	return nil
}

func (r memoryResults) GetByID(_ context.Context, id string) (*model.AdministrationResult, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, res := range r.m.results {
		if res.ID == id {
			return res, nil
		}
	}
	return nil, nil
}

func (r memoryResults) GetByRunID(_ context.Context, runID string) ([]*model.AdministrationResult, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	results := []*model.AdministrationResult{}
	for _, res := range r.m.results {
		if res.RunID == runID {
			results = append(results, res)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.AgentName != b.AgentName {
			return a.AgentName < b.AgentName
		}
		if a.ScenarioIdx != b.ScenarioIdx {
			return a.ScenarioIdx < b.ScenarioIdx
		}
		return a.Iteration < b.Iteration
	})
	return results, nil
}
