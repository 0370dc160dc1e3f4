package service

import (
	"context"
	"sync"
	"time"

	"agentsurvey/internal/assembler"
	"agentsurvey/internal/cache"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/invigilator"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/model"
	"agentsurvey/internal/question"
	"agentsurvey/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunRequest administers a whole survey to every agent in every scenario
type RunRequest struct {
	Agents     []model.Agent    `json:"agents" yaml:"agents"`
	Scenarios  []model.Scenario `json:"scenarios" yaml:"scenarios"`
	Iterations int              `json:"iterations" yaml:"iterations"`
	Fresh      bool             `json:"fresh" yaml:"fresh"`
}

func (r *RunRequest) normalize() {
	if len(r.Agents) == 0 {
		r.Agents = []model.Agent{{Name: "agent_0"}}
	}
	if len(r.Scenarios) == 0 {
		r.Scenarios = []model.Scenario{{}}
	}
	if r.Iterations < 1 {
		r.Iterations = 1
	}
	for i := range r.Agents {
		normalizeAgent(&r.Agents[i])
	}
}

func normalizeAgent(a *model.Agent) {
	if a == nil || a.Traits == nil {
		return
	}
	if traits, ok := model.NormalizeNumbers(a.Traits).(map[string]any); ok {
		a.Traits = traits
	}
}

// Runner fans a survey out over agents, scenarios and iterations. Within one
// agent/scenario/iteration the questions are asked in survey order so later
// questions can see earlier answers.
type Runner struct {
	caller      llm.Caller
	cache       cache.ResponseCache
	runRepo     repository.RunRepo
	resultRepo  repository.ResultRepo
	broadcaster Broadcaster
	registry    *question.Registry
	concurrency int
	logger      *zap.Logger
}

// RunnerOptions configure a Runner. Repositories and the broadcaster are optional.
type RunnerOptions struct {
	Caller      llm.Caller
	Cache       cache.ResponseCache
	RunRepo     repository.RunRepo
	ResultRepo  repository.ResultRepo
	Broadcaster Broadcaster
	Registry    *question.Registry
	Concurrency int
	Logger      *zap.Logger
}

// NewRunner creates a new survey runner
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		caller:      opts.Caller,
		cache:       opts.Cache,
		runRepo:     opts.RunRepo,
		resultRepo:  opts.ResultRepo,
		broadcaster: opts.Broadcaster,
		registry:    opts.Registry,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if r.broadcaster == nil {
		r.broadcaster = noopBroadcaster{}
	}
	if r.registry == nil {
		r.registry = question.Default()
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

func (r *Runner) newRun(survey *model.Survey, req *RunRequest) *model.Run {
	run := &model.Run{
		ID:         uuid.New().String(),
		SurveyID:   survey.ID,
		OwnerID:    survey.OwnerID,
		Agents:     len(req.Agents),
		Scenarios:  len(req.Scenarios),
		Iterations: req.Iterations,
		Status:     model.RunStatusRunning,
		CreatedAt:  time.Now(),
	}
	if r.caller != nil {
		run.Model = r.caller.Model()
	}
	return run
}

// Start records a new run and executes it in the background
func (r *Runner) Start(ctx context.Context, survey *model.Survey, req *RunRequest) (*model.Run, error) {
	req.normalize()
	run := r.newRun(survey, req)
	if r.runRepo != nil {
		if err := r.runRepo.Create(ctx, run); err != nil {
			return nil, errs.Wrap(err, errs.CategoryInternal, "run_store", "", true)
		}
	}

	snapshot := *run
	go func() {
		// detached from the request that started it
		if _, err := r.execute(context.Background(), run, survey, req); err != nil {
			r.logger.Error("run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}()
	return &snapshot, nil
}

// Execute runs the survey and waits for it, returning the results in
// agent, scenario, iteration and question order
func (r *Runner) Execute(ctx context.Context, survey *model.Survey, req *RunRequest) (*model.Run, []*model.AdministrationResult, error) {
	req.normalize()
	run := r.newRun(survey, req)
	if r.runRepo != nil {
		if err := r.runRepo.Create(ctx, run); err != nil {
			return nil, nil, errs.Wrap(err, errs.CategoryInternal, "run_store", "", true)
		}
	}
	results, err := r.execute(ctx, run, survey, req)
	return run, results, err
}

type combo struct {
	agent     *model.Agent
	scenario  model.Scenario
	index     int
	iteration int
	fresh     bool
}

func (r *Runner) execute(ctx context.Context, run *model.Run, survey *model.Survey, req *RunRequest) ([]*model.AdministrationResult, error) {
	var combos []combo
	for a := range req.Agents {
		for s, scenario := range req.Scenarios {
			for it := 0; it < req.Iterations; it++ {
				combos = append(combos, combo{agent: &req.Agents[a], scenario: scenario, index: s, iteration: it, fresh: req.Fresh})
			}
		}
	}

	logger := r.logger.With(zap.String("run_id", run.ID), zap.String("survey_id", survey.ID))
	logger.Info("run started", zap.Int("administrations", len(combos)*len(survey.Questions)))

	var mu sync.Mutex
	perCombo := make([][]*model.AdministrationResult, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, c := range combos {
		g.Go(func() error {
			results, err := r.administerAll(gctx, run, survey, c, logger)
			perCombo[i] = results

			mu.Lock()
			for _, res := range results {
				run.Tally(res)
			}
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()

	run.CompletedAt = time.Now()
	run.Status = model.RunStatusCompleted
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
	}
	if r.runRepo != nil {
		if uerr := r.runRepo.Update(context.WithoutCancel(ctx), run); uerr != nil {
			logger.Error("run update failed", zap.Error(uerr))
		}
	}
	r.broadcaster.BroadcastToRun(run.ID, MsgRunCompleted, run)
	r.broadcaster.CloseRun(run.ID)

	logger.Info("run finished",
		zap.String("status", string(run.Status)),
		zap.Int("validated", run.Validated),
		zap.Int("failed", run.Failed),
		zap.Int("cache_hits", run.CacheHits),
		zap.Float64("cost", run.Cost))

	var all []*model.AdministrationResult
	for _, rs := range perCombo {
		all = append(all, rs...)
	}
	return all, err
}

// administerAll asks every question of the survey for one combination
func (r *Runner) administerAll(ctx context.Context, run *model.Run, survey *model.Survey, c combo, logger *zap.Logger) ([]*model.AdministrationResult, error) {
	prior := priorAnswers(survey, nil)
	results := make([]*model.AdministrationResult, 0, len(survey.Questions))

	for i := range survey.Questions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		q := &survey.Questions[i]
		inv := invigilator.New(assembler.Input{
			Question: q,
			Agent:    c.agent,
			Scenario: c.scenario,
			Prior:    prior,
			Survey:   survey,
			Registry: r.registry,
		}, invigilator.Options{
			Caller:        r.caller,
			Cache:         r.cache,
			Logger:        logger,
			RunID:         run.ID,
			SurveyID:      survey.ID,
			ScenarioIndex: c.index,
			Iteration:     c.iteration,
			Fresh:         c.fresh,
		})
		res := inv.Administer(ctx)
		results = append(results, res)
		prior[q.Name] = res.AsPriorAnswer(q.Text)

		if r.resultRepo != nil {
			if err := r.resultRepo.Insert(ctx, res); err != nil {
				return results, errs.Wrap(err, errs.CategoryInternal, "result_store", "", true)
			}
		}
		r.broadcaster.BroadcastToRun(run.ID, MsgAdministrationCompleted, res)
	}
	return results, nil
}
