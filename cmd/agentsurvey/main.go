// Command agentsurvey renders prompts, administers questions and runs whole
// surveys from YAML files, without the API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/llm"
	"agentsurvey/internal/logging"
	"agentsurvey/internal/model"
	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const cliOperator = "cli"

var (
	logger *zap.Logger

	verbose     bool
	surveyPath  string
	staticReply string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "agentsurvey",
	Short:        "Administer surveys to simulated respondents",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		l, err := logging.New(level, false)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&surveyPath, "survey", "s", "survey.yaml", "Survey definition (YAML)")
	rootCmd.PersistentFlags().StringVar(&staticReply, "static-reply", "", "Answer every call with this text instead of calling a model")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(administerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// loadSurvey reads and checks the survey file
func loadSurvey() (*model.Survey, error) {
	var survey model.Survey
	if err := readYAML(surveyPath, &survey); err != nil {
		return nil, err
	}
	if err := service.NewSurveyService(nil, nil).Check(&survey); err != nil {
		return nil, fmt.Errorf("%s: %w", surveyPath, err)
	}
	return &survey, nil
}

func newCaller(ctx context.Context) (*llm.Client, error) {
	if staticReply != "" {
		return llm.NewClient(llm.NewStaticProvider(staticReply), nil, config.ModelPricing{}, logger), nil
	}
	return llm.NewClientFromConfig(ctx, config.Load().AI, logger)
}

// session wires the services over an in-memory store holding the survey
type session struct {
	survey   *model.Survey
	store    *repository.MemoryStore
	surveys  *service.SurveyService
	caller   *llm.Client
	response *cache.MemoryResponseCache
}

func newSession(ctx context.Context) (*session, error) {
	survey, err := loadSurvey()
	if err != nil {
		return nil, err
	}
	caller, err := newCaller(ctx)
	if err != nil {
		return nil, err
	}

	store := repository.NewMemoryStore()
	surveys := service.NewSurveyService(store.Surveys(), nil)
	if _, err := surveys.Create(ctx, cliOperator, survey); err != nil {
		return nil, err
	}
	return &session{
		survey:   survey,
		store:    store,
		surveys:  surveys,
		caller:   caller,
		response: cache.NewMemoryResponseCache(),
	}, nil
}

func (s *session) administration() *service.AdministrationService {
	return service.NewAdministrationService(s.surveys, s.caller, s.response, s.store.Results(), logger)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
