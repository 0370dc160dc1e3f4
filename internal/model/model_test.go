package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestScenarioJSONKeepsOrder(t *testing.T) {
	var s Scenario
	require.NoError(t, json.Unmarshal([]byte(`{"zeta": 1, "alpha": "x", "mid": [1, 2.5]}`), &s))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Keys())
	v, _ := s.Get("zeta")
	assert.Equal(t, int64(1), v)
	v, _ = s.Get("mid")
	assert.Equal(t, []any{int64(1), 2.5}, v)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":[1,2.5]}`, string(out))
}

func TestScenarioYAMLKeepsOrderAndAttachments(t *testing.T) {
	src := `
b: second
a: first
logo:
  base64_string: aGVsbG8=
  mime_type: image/png
`
	var s Scenario
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))
	assert.Equal(t, []string{"b", "a", "logo"}, s.Keys())

	fa, ok := s.Attachment("logo")
	require.True(t, ok)
	assert.Equal(t, "image/png", fa.MimeType)

	values := s.TemplateValues()
	assert.NotContains(t, values, "logo")
	assert.Equal(t, "first", values["a"])
}

func TestScenarioSetKeepsPosition(t *testing.T) {
	s := NewScenario("a", 1, "b", 2)
	s.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	v, _ := s.Get("a")
	assert.Equal(t, 3, v)
}

func TestPriorAnswerVariants(t *testing.T) {
	answered := Answered{Name: "q0", Answer: []any{"x", "y"}, Comment: "because"}
	assert.True(t, answered.IsAnswered())
	assert.Equal(t, "y", answered.Index(1))
	assert.Nil(t, answered.Index(5))
	assert.Equal(t, "because", answered.Attr("comment"))

	var prior PriorAnswer = Unanswered{Name: "q9"}
	assert.False(t, prior.IsAnswered())
	assert.Equal(t, "", prior.Attr("answer"))
	assert.Equal(t, "", prior.Index(3))
	assert.Equal(t, "q9", prior.QuestionName())

	answers := PriorAnswers{"q0": answered}
	assert.True(t, answers.Lookup("q0").IsAnswered())
	assert.False(t, answers.Lookup("missing").IsAnswered())
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("q_1"))
	assert.Error(t, ValidateName("1q"))
	assert.Error(t, ValidateName("has space"))
	assert.Error(t, ValidateName("scenario"))
}

func TestSurveyValidate(t *testing.T) {
	base := func() *Survey {
		return &Survey{
			Questions: []Question{
				{Name: "q0", Type: QuestionTypeFreeText},
				{Name: "q1", Type: QuestionTypeNumerical},
			},
		}
	}

	s := base()
	s.MemoryPlan = MemoryPlan{"q1": {"q0"}}
	assert.NoError(t, s.Validate())

	s = base()
	s.Questions[1].Name = "q0"
	assert.ErrorContains(t, s.Validate(), "duplicate")

	s = base()
	s.MemoryPlan = MemoryPlan{"q0": {"q1"}}
	assert.ErrorContains(t, s.Validate(), "not asked earlier")

	s = base()
	s.Instructions = []Instruction{{Name: "i", Before: "nope"}}
	assert.Error(t, s.Validate())
}

func TestInstructionsApplyFromTheirQuestionOnward(t *testing.T) {
	s := &Survey{
		Questions: []Question{{Name: "q0"}, {Name: "q1"}, {Name: "q2"}},
		Instructions: []Instruction{
			{Name: "intro", Text: "Be honest.", Before: "q0"},
			{Name: "part2", Text: "Now about food.", Before: "q2"},
		},
	}
	assert.Len(t, s.InstructionsFor("q0"), 1)
	assert.Len(t, s.InstructionsFor("q1"), 1)
	assert.Len(t, s.InstructionsFor("q2"), 2)
	assert.Nil(t, s.InstructionsFor("unknown"))
}

func TestRunTally(t *testing.T) {
	var run Run
	run.Tally(&AdministrationResult{Validated: true, CacheUsed: true, Cost: 0.5})
	run.Tally(&AdministrationResult{ExceptionOccurred: &ExceptionInfo{Kind: ExceptionValidation}, Cost: 0.25})

	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Validated)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.CacheHits)
	assert.InDelta(t, 0.75, run.Cost, 1e-9)
}
