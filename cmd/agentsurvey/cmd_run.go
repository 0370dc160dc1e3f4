package main

import (
	"fmt"
	"os"

	"agentsurvey/internal/model"
	"agentsurvey/internal/service"

	"github.com/spf13/cobra"
)

var (
	runPath     string
	outPath     string
	concurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Administer the whole survey to every agent in every scenario",
	Long: `Reads agents, scenarios and an iteration count from the run file and asks
every question, in survey order, for each combination. Results are written
as JSON; a one-line summary goes to stderr.`,
	RunE: runSurvey,
}

func init() {
	runCmd.Flags().StringVarP(&runPath, "run", "r", "", "Run definition: agents, scenarios, iterations (YAML)")
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write results here instead of stdout")
	runCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Combinations administered in parallel")
}

func runSurvey(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}

	var req service.RunRequest
	if runPath != "" {
		if err := readYAML(runPath, &req); err != nil {
			return err
		}
	}

	runner := service.NewRunner(service.RunnerOptions{
		Caller:      s.caller,
		Cache:       s.response,
		RunRepo:     s.store.Runs(),
		ResultRepo:  s.store.Results(),
		Concurrency: concurrency,
		Logger:      logger,
	})
	run, results, err := runner.Execute(ctx, s.survey, &req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := writeJSON(out, struct {
		Run     *model.Run                    `json:"run"`
		Results []*model.AdministrationResult `json:"results"`
	}{run, results}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d administrations: %d validated, %d failed, %d from cache, cost %.6f\n",
		run.Total, run.Validated, run.Failed, run.CacheHits, run.Cost)
	return nil
}
