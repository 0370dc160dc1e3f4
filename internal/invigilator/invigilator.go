// Package invigilator administers one question to one agent: it builds the
// prompts, calls the model, validates the reply and keeps the response cache
// consistent with the outcome.
package invigilator

import (
	"context"
	"fmt"
	"time"

	"agentsurvey/internal/assembler"
	"agentsurvey/internal/cache"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/model"
	"agentsurvey/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is where an administration is in its lifecycle
type State string

const (
	StatePending      State = "PENDING"
	StatePromptsBuilt State = "PROMPTS_BUILT"
	StateModelCalled  State = "MODEL_CALLED"
	StateValidated    State = "VALIDATED"
	StateFailed       State = "FAILED"
)

// Options configure an administration
type Options struct {
	Caller llm.Caller
	Cache  cache.ResponseCache // nil disables caching
	Hooks  validate.Hooks
	Logger *zap.Logger

	RunID         string
	SurveyID      string
	ScenarioIndex int
	Iteration     int
	Fresh         bool // ignore cached replies
}

// Invigilator runs a single administration. It is used once.
type Invigilator struct {
	in        assembler.Input
	opts      Options
	assembler *assembler.Assembler
	logger    *zap.Logger
	state     State
}

func New(in assembler.Input, opts Options) *Invigilator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invigilator{
		in:        in,
		opts:      opts,
		assembler: assembler.New(in),
		logger:    logger.With(zap.String("question", in.Question.Name)),
		state:     StatePending,
	}
}

func (v *Invigilator) State() State {
	return v.state
}

// Prompts renders the prompts without calling the model
func (v *Invigilator) Prompts() (*assembler.Prompts, error) {
	return v.assembler.Prompts()
}

// Administer never returns an error: every failure ends up in the result's
// ExceptionOccurred field
func (v *Invigilator) Administer(ctx context.Context) *model.AdministrationResult {
	result := &model.AdministrationResult{
		ID:           uuid.New().String(),
		RunID:        v.opts.RunID,
		SurveyID:     v.opts.SurveyID,
		QuestionName: v.in.Question.Name,
		ScenarioIdx:  v.opts.ScenarioIndex,
		Iteration:    v.opts.Iteration,
		CreatedAt:    time.Now(),
	}
	if v.in.Agent != nil {
		result.AgentName = v.in.Agent.Name
	}

	prompts, err := v.assembler.Prompts()
	if err != nil {
		return v.fail(result, model.ExceptionRender, err)
	}
	result.Prompts = prompts.Model()

	typ, constraints, err := v.assembler.Resolved()
	if err != nil {
		return v.fail(result, model.ExceptionRender, err)
	}
	validator, err := validate.New(v.in.Question, typ, constraints, v.opts.Hooks)
	if err != nil {
		return v.fail(result, model.ExceptionRender, err)
	}
	v.state = StatePromptsBuilt

	if v.opts.Caller == nil {
		return v.fail(result, model.ExceptionModelCall, errs.New(errs.CategoryModelCall, "no_model", "no model configured"))
	}
	call, err := v.opts.Caller.Call(ctx, &llm.CallRequest{
		UserPrompt:   prompts.User.String(),
		SystemPrompt: prompts.System.String(),
		Iteration:    v.opts.Iteration,
		Cache:        v.opts.Cache,
		Schema:       validator.Schema(),
		SchemaID:     validator.SchemaID(),
		Attachments:  prompts.Attachments,
		Fresh:        v.opts.Fresh,
	})
	if err != nil {
		return v.fail(result, model.ExceptionModelCall, err)
	}
	v.state = StateModelCalled

	result.RawModelResponse = call.Reply
	result.GeneratedTokens = call.Reply
	result.CacheUsed = call.CacheUsed
	result.CacheKey = call.CacheKey
	result.Model = call.Model
	result.InputTokens = call.InputTokens
	result.OutputTokens = call.OutputTokens
	result.Cost = call.Cost

	out, err := validator.Validate(call.Reply)
	if err != nil {
		v.forget(ctx, call.CacheKey)
		return v.fail(result, model.ExceptionValidation, err)
	}

	result.Answer = out.Answer
	result.Comment = out.Comment
	result.GeneratedTokens = out.GeneratedTokens
	result.Validated = true
	v.state = StateValidated

	if !call.CacheUsed {
		v.remember(ctx, call)
	}
	v.logger.Debug("administration validated",
		zap.String("agent", result.AgentName),
		zap.Bool("cache_used", call.CacheUsed),
		zap.Bool("repaired", out.Repaired))
	return result
}

// remember stores a validated fresh reply
func (v *Invigilator) remember(ctx context.Context, call *llm.CallResult) {
	if v.opts.Cache == nil || call.CacheKey == "" {
		return
	}
	entry := &cache.Entry{RawReply: call.Reply, Model: call.Model, StoredAt: time.Now()}
	if _, err := v.opts.Cache.Store(ctx, call.CacheKey, entry); err != nil {
		v.logger.Warn("response cache store failed", zap.String("key", call.CacheKey), zap.Error(err))
	}
}

// forget drops any entry for a reply that failed validation
func (v *Invigilator) forget(ctx context.Context, key string) {
	if v.opts.Cache == nil || key == "" {
		return
	}
	if err := v.opts.Cache.Remove(ctx, key); err != nil {
		v.logger.Warn("response cache remove failed", zap.String("key", key), zap.Error(err))
	}
}

func (v *Invigilator) fail(result *model.AdministrationResult, kind model.ExceptionKind, err error) *model.AdministrationResult {
	v.state = StateFailed

	info := &model.ExceptionInfo{
		Kind:    kind,
		Code:    errs.CodeOf(err),
		Message: err.Error(),
	}
	if ve, ok := validate.AsValidationError(err); ok {
		info.Explanation = ve.Explanation
		info.RawReply = ve.Raw
		info.Schema = ve.Schema
	}
	result.ExceptionOccurred = info
	result.Validated = false
	result.Answer = nil
	result.Comment = failureComment(kind, err)

	v.logger.Warn("administration failed",
		zap.String("agent", result.AgentName),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return result
}

func failureComment(kind model.ExceptionKind, err error) string {
	switch kind {
	case model.ExceptionValidation:
		if ve, ok := validate.AsValidationError(err); ok {
			return fmt.Sprintf("The model's reply could not be validated: %s", ve.Explanation)
		}
		return "The model's reply could not be validated."
	case model.ExceptionModelCall:
		return "The model could not be reached; no reply was received."
	}
	return fmt.Sprintf("The prompt could not be rendered: %v", err)
}
