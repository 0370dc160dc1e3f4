package main

import (
	"fmt"
	"io"

	"agentsurvey/internal/assembler"
	"agentsurvey/internal/validate"

	"github.com/spf13/cobra"
)

var replyText string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a raw model reply against a question's answer schema",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&questionName, "question", "q", "", "Question name")
	validateCmd.Flags().StringVar(&replyText, "reply", "", "Raw reply text; read from stdin when empty")
	validateCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario values (YAML mapping)")
	validateCmd.MarkFlagRequired("question")
}

func runValidate(cmd *cobra.Command, args []string) error {
	survey, err := loadSurvey()
	if err != nil {
		return err
	}
	q, ok := survey.Question(questionName)
	if !ok {
		return fmt.Errorf("survey has no question %q", questionName)
	}

	in := assembler.Input{Question: q, Survey: survey}
	if scenarioPath != "" {
		if err := readYAML(scenarioPath, &in.Scenario); err != nil {
			return err
		}
	}
	typ, constraints, err := assembler.New(in).Resolved()
	if err != nil {
		return err
	}
	v, err := validate.New(q, typ, constraints, validate.Hooks{})
	if err != nil {
		return err
	}

	raw := replyText
	if raw == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		raw = string(data)
	}

	outcome, err := v.Validate(raw)
	if err != nil {
		if ve, ok := validate.AsValidationError(err); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "schema:")
			writeJSON(cmd.ErrOrStderr(), ve.Schema)
			return fmt.Errorf("invalid reply: %s", ve.Explanation)
		}
		return err
	}
	return writeJSON(cmd.OutOrStdout(), outcome)
}
