package model

import "time"

// Prompts are the rendered prompts sent to the model
type Prompts struct {
	User   string `json:"userPrompt" bson:"userPrompt"`
	System string `json:"systemPrompt" bson:"systemPrompt"`
}

// ExceptionKind tells failure sources apart
type ExceptionKind string

const (
	ExceptionRender     ExceptionKind = "render"
	ExceptionValidation ExceptionKind = "validation"
	ExceptionModelCall  ExceptionKind = "model_call"
)

// ExceptionInfo records why an administration failed
type ExceptionInfo struct {
	Kind        ExceptionKind  `json:"kind" bson:"kind"`
	Code        string         `json:"code,omitempty" bson:"code,omitempty"`
	Message     string         `json:"message" bson:"message"`
	Explanation string         `json:"explanation,omitempty" bson:"explanation,omitempty"`
	RawReply    string         `json:"rawReply,omitempty" bson:"rawReply,omitempty"`
	Schema      map[string]any `json:"schema,omitempty" bson:"schema,omitempty"`
}

// AdministrationResult is the outcome of asking one agent one question.
// It is built once and not modified afterwards.
type AdministrationResult struct {
	ID           string `json:"id" bson:"_id"`
	RunID        string `json:"runId,omitempty" bson:"runId,omitempty"`
	SurveyID     string `json:"surveyId,omitempty" bson:"surveyId,omitempty"`
	AgentName    string `json:"agentName" bson:"agentName"`
	QuestionName string `json:"questionName" bson:"questionName"`
	ScenarioIdx  int    `json:"scenarioIndex" bson:"scenarioIndex"`
	Iteration    int    `json:"iteration" bson:"iteration"`

	Prompts          Prompts `json:"prompts" bson:"prompts"`
	RawModelResponse string  `json:"rawModelResponse" bson:"rawModelResponse"`
	GeneratedTokens  string  `json:"generatedTokens" bson:"generatedTokens"`

	CacheUsed bool   `json:"cacheUsed" bson:"cacheUsed"`
	CacheKey  string `json:"cacheKey" bson:"cacheKey"`

	Answer            any            `json:"answer" bson:"answer"`
	Comment           string         `json:"comment" bson:"comment"`
	Validated         bool           `json:"validated" bson:"validated"`
	ExceptionOccurred *ExceptionInfo `json:"exceptionOccurred" bson:"exceptionOccurred"`

	Model        string  `json:"model" bson:"model"`
	InputTokens  int     `json:"inputTokens" bson:"inputTokens"`
	OutputTokens int     `json:"outputTokens" bson:"outputTokens"`
	Cost         float64 `json:"cost" bson:"cost"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Failed reports whether the administration ended without a validated answer
func (r *AdministrationResult) Failed() bool {
	return r.ExceptionOccurred != nil
}

// AsPriorAnswer exposes a validated result to later questions' templates
func (r *AdministrationResult) AsPriorAnswer(questionText string) PriorAnswer {
	if !r.Validated {
		return Unanswered{Name: r.QuestionName, Text: questionText}
	}
	return Answered{
		Name:            r.QuestionName,
		Text:            questionText,
		Answer:          r.Answer,
		Comment:         r.Comment,
		GeneratedTokens: r.GeneratedTokens,
	}
}
