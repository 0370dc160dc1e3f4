package model

import "time"

// RunStatus describes the lifecycle of a survey run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run administers every question of a survey to every agent in every scenario
type Run struct {
	ID          string    `json:"id" bson:"_id"`
	SurveyID    string    `json:"surveyId" bson:"surveyId"`
	OwnerID     string    `json:"ownerId" bson:"ownerId"`
	Model       string    `json:"model" bson:"model"`
	Agents      int       `json:"agents" bson:"agents"`
	Scenarios   int       `json:"scenarios" bson:"scenarios"`
	Iterations  int       `json:"iterations" bson:"iterations"`
	Status      RunStatus `json:"status" bson:"status"`
	Total       int       `json:"total" bson:"total"`
	Validated   int       `json:"validated" bson:"validated"`
	Failed      int       `json:"failed" bson:"failed"`
	CacheHits   int       `json:"cacheHits" bson:"cacheHits"`
	Cost        float64   `json:"cost" bson:"cost"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Tally folds one administration result into the run counters
func (r *Run) Tally(res *AdministrationResult) {
	r.Total++
	if res.Validated {
		r.Validated++
	} else {
		r.Failed++
	}
	if res.CacheUsed {
		r.CacheHits++
	}
	r.Cost += res.Cost
}
