package service

import (
	"context"
	"errors"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/question"
	"agentsurvey/internal/repository"
)

// SurveyService handles survey CRUD operations
type SurveyService struct {
	surveyRepo repository.SurveyRepo
	registry   *question.Registry
}

// NewSurveyService creates a new survey service
func NewSurveyService(surveyRepo repository.SurveyRepo, registry *question.Registry) *SurveyService {
	if registry == nil {
		registry = question.Default()
	}
	return &SurveyService{
		surveyRepo: surveyRepo,
		registry:   registry,
	}
}

// Check validates a survey's structure and question types. Decoded JSON
// numbers in question attributes are normalised on the way.
func (s *SurveyService) Check(survey *model.Survey) error {
	for i := range survey.Questions {
		q := &survey.Questions[i]
		q.Options = model.NormalizeNumbers(q.Options)
		q.MinValue = model.NormalizeNumbers(q.MinValue)
		q.MaxValue = model.NormalizeNumbers(q.MaxValue)
		q.Items = model.NormalizeNumbers(q.Items)
	}
	if len(survey.Questions) == 0 {
		return errs.New(errs.CategoryInvalidInput, "empty_survey", "survey has no questions")
	}
	if err := survey.Validate(); err != nil {
		return errs.Wrap(err, errs.CategoryInvalidInput, "invalid_survey", "", false)
	}
	for _, q := range survey.Questions {
		if _, err := s.registry.Lookup(q.Type); err != nil {
			return err
		}
	}
	return nil
}

// Create creates a new survey owned by ownerID
func (s *SurveyService) Create(ctx context.Context, ownerID string, survey *model.Survey) (string, error) {
	if err := s.Check(survey); err != nil {
		return "", err
	}
	survey.ID = ""
	survey.OwnerID = ownerID
	return s.surveyRepo.Create(ctx, survey)
}

// Get retrieves a survey owned by ownerID. An empty ownerID skips the check.
func (s *SurveyService) Get(ctx context.Context, ownerID, id string) (*model.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "survey_lookup", "", true)
	}
	if survey == nil || (ownerID != "" && survey.OwnerID != ownerID) {
		return nil, errs.New(errs.CategoryNotFound, "survey_not_found", "survey %s not found", id)
	}
	return survey, nil
}

// List retrieves all surveys for an operator
func (s *SurveyService) List(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	return s.surveyRepo.GetByOwnerID(ctx, ownerID)
}

// Update replaces an existing survey
func (s *SurveyService) Update(ctx context.Context, ownerID string, survey *model.Survey) error {
	existing, err := s.Get(ctx, ownerID, survey.ID)
	if err != nil {
		return err
	}
	if err := s.Check(survey); err != nil {
		return err
	}
	survey.OwnerID = existing.OwnerID
	survey.CreatedAt = existing.CreatedAt

	err = s.surveyRepo.Update(ctx, survey)
	if errors.Is(err, repository.ErrNotFound) {
		return errs.New(errs.CategoryNotFound, "survey_not_found", "survey %s not found", survey.ID)
	}
	return err
}

// Delete deletes a survey
func (s *SurveyService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.surveyRepo.Delete(ctx, id)
}
