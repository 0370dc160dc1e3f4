package service

import (
	"context"

	"agentsurvey/internal/assembler"
	"agentsurvey/internal/cache"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/invigilator"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/model"
	"agentsurvey/internal/question"
	"agentsurvey/internal/repository"

	"go.uber.org/zap"
)

// PriorResponse is a caller-supplied answer to an earlier question
type PriorResponse struct {
	Answer  any    `json:"answer"`
	Comment string `json:"comment,omitempty"`
}

// AdministrationRequest asks one agent one question of a survey
type AdministrationRequest struct {
	QuestionName string                   `json:"questionName"`
	Agent        *model.Agent             `json:"agent"`
	Scenario     model.Scenario           `json:"scenario"`
	Answers      map[string]PriorResponse `json:"answers,omitempty"`
	Iteration    int                      `json:"iteration"`
	Fresh        bool                     `json:"fresh"`
}

// AdministrationService handles single-question administrations
type AdministrationService struct {
	surveys    *SurveyService
	caller     llm.Caller
	cache      cache.ResponseCache
	resultRepo repository.ResultRepo
	registry   *question.Registry
	logger     *zap.Logger
}

// NewAdministrationService creates a new administration service. resultRepo
// may be nil, in which case results are not persisted.
func NewAdministrationService(
	surveys *SurveyService,
	caller llm.Caller,
	responseCache cache.ResponseCache,
	resultRepo repository.ResultRepo,
	logger *zap.Logger,
) *AdministrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdministrationService{
		surveys:    surveys,
		caller:     caller,
		cache:      responseCache,
		resultRepo: resultRepo,
		registry:   surveys.registry,
		logger:     logger,
	}
}

// Prompts renders the prompts for a request without calling the model
func (s *AdministrationService) Prompts(ctx context.Context, ownerID, surveyID string, req *AdministrationRequest) (*model.Prompts, error) {
	inv, err := s.invigilator(ctx, ownerID, surveyID, req)
	if err != nil {
		return nil, err
	}
	p, err := inv.Prompts()
	if err != nil {
		return nil, err
	}
	out := p.Model()
	return &out, nil
}

// Administer asks the question and persists the result. A failed
// administration is still a result; only lookup and storage problems are errors.
func (s *AdministrationService) Administer(ctx context.Context, ownerID, surveyID string, req *AdministrationRequest) (*model.AdministrationResult, error) {
	inv, err := s.invigilator(ctx, ownerID, surveyID, req)
	if err != nil {
		return nil, err
	}
	result := inv.Administer(ctx)

	if s.resultRepo != nil {
		if err := s.resultRepo.Insert(ctx, result); err != nil {
			return nil, errs.Wrap(err, errs.CategoryInternal, "result_store", "", true)
		}
	}
	return result, nil
}

func (s *AdministrationService) invigilator(ctx context.Context, ownerID, surveyID string, req *AdministrationRequest) (*invigilator.Invigilator, error) {
	survey, err := s.surveys.Get(ctx, ownerID, surveyID)
	if err != nil {
		return nil, err
	}
	q, ok := survey.Question(req.QuestionName)
	if !ok {
		return nil, errs.New(errs.CategoryNotFound, "question_not_found", "survey %s has no question %q", surveyID, req.QuestionName)
	}

	normalizeAgent(req.Agent)
	in := assembler.Input{
		Question: q,
		Agent:    req.Agent,
		Scenario: req.Scenario,
		Prior:    priorAnswers(survey, req.Answers),
		Survey:   survey,
		Registry: s.registry,
	}
	return invigilator.New(in, invigilator.Options{
		Caller:    s.caller,
		Cache:     s.cache,
		Logger:    s.logger,
		SurveyID:  survey.ID,
		Iteration: req.Iteration,
		Fresh:     req.Fresh,
	}), nil
}

// priorAnswers marks every survey question answered or not, using the
// supplied answers
func priorAnswers(survey *model.Survey, answers map[string]PriorResponse) model.PriorAnswers {
	prior := make(model.PriorAnswers, len(survey.Questions))
	for _, q := range survey.Questions {
		if a, ok := answers[q.Name]; ok {
			prior[q.Name] = model.Answered{
				Name:    q.Name,
				Text:    q.Text,
				Answer:  model.NormalizeNumbers(a.Answer),
				Comment: a.Comment,
			}
			continue
		}
		prior[q.Name] = model.Unanswered{Name: q.Name, Text: q.Text}
	}
	return prior
}
