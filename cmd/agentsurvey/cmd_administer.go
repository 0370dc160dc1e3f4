package main

import (
	"fmt"

	"agentsurvey/internal/model"
	"agentsurvey/internal/service"

	"github.com/spf13/cobra"
)

var (
	questionName string
	agentPath    string
	scenarioPath string
	answersPath  string
	iteration    int
	fresh        bool
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Render the system and user prompts for one question",
	RunE:  runPrompts,
}

var administerCmd = &cobra.Command{
	Use:   "administer",
	Short: "Ask one agent one question and print the result",
	RunE:  runAdminister,
}

func init() {
	for _, cmd := range []*cobra.Command{promptsCmd, administerCmd} {
		cmd.Flags().StringVarP(&questionName, "question", "q", "", "Question name")
		cmd.Flags().StringVarP(&agentPath, "agent", "a", "", "Agent definition (YAML)")
		cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario values (YAML mapping)")
		cmd.Flags().StringVar(&answersPath, "answers", "", "Earlier answers by question name (YAML)")
		cmd.MarkFlagRequired("question")
	}
	administerCmd.Flags().IntVar(&iteration, "iteration", 0, "Iteration number; distinct iterations never share cached replies")
	administerCmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore cached replies")
}

func administrationRequest() (*service.AdministrationRequest, error) {
	req := &service.AdministrationRequest{
		QuestionName: questionName,
		Iteration:    iteration,
		Fresh:        fresh,
	}
	if agentPath != "" {
		var agent model.Agent
		if err := readYAML(agentPath, &agent); err != nil {
			return nil, err
		}
		req.Agent = &agent
	}
	if scenarioPath != "" {
		if err := readYAML(scenarioPath, &req.Scenario); err != nil {
			return nil, err
		}
	}
	if answersPath != "" {
		if err := readYAML(answersPath, &req.Answers); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func runPrompts(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	req, err := administrationRequest()
	if err != nil {
		return err
	}

	prompts, err := s.administration().Prompts(ctx, cliOperator, s.survey.ID, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== system prompt ===")
	fmt.Fprint(out, prompts.System)
	fmt.Fprintln(out, "=== user prompt ===")
	fmt.Fprint(out, prompts.User)
	return nil
}

func runAdminister(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	req, err := administrationRequest()
	if err != nil {
		return err
	}

	result, err := s.administration().Administer(ctx, cliOperator, s.survey.ID, req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
