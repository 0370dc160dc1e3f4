package assembler

import (
	"errors"
	"testing"
	"time"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/prompt"
	"agentsurvey/internal/resolve"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeText(name, text string) *model.Question {
	return &model.Question{Name: name, Text: text, Type: model.QuestionTypeFreeText}
}

func TestDefaultPlanPrompts(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "Tell me about {{ scenario.topic }}."),
		Agent:    &model.Agent{Traits: map[string]any{"age": 30}},
		Scenario: model.NewScenario("topic", "cats"),
	})

	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "Tell me about cats.\n", p.User.String())
	assert.Equal(t, model.DefaultAgentInstruction+"\nYour traits: {'age': 30}\n", p.System.String())
	assert.Empty(t, p.Attachments)
}

func TestAgentWithoutTraitsRendersEmpty(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Agent:    &model.Agent{Instruction: "Be terse."},
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Empty(t, p.System.String())
}

func TestPersonaCodebookLabels(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Agent: &model.Agent{
			Traits:   map[string]any{"age": 30, "city": "Oslo"},
			Codebook: map[string]string{"age": "Age in years"},
		},
	})
	persona, err := a.Component(prompt.AgentPersona)
	require.NoError(t, err)
	assert.Equal(t, "Your traits: {'Age in years': 30, 'city': 'Oslo'}\n", persona.String())
}

func TestPersonaNestedTraitTemplate(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Agent: &model.Agent{
			Traits:                     map[string]any{"name": "Mr. {{ last_name }}", "last_name": "Smith"},
			TraitsPresentationTemplate: "I am {{ name }}.",
		},
	})
	persona, err := a.Component(prompt.AgentPersona)
	require.NoError(t, err)
	assert.Equal(t, "I am Mr. Smith.\n", persona.String())
}

func TestPersonaUndefinedTraitFails(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Agent: &model.Agent{
			Traits:                     map[string]any{"age": 30},
			TraitsPresentationTemplate: "I live in {{ city }}.",
		},
	})
	_, err := a.Prompts()
	require.Error(t, err)
	assert.True(t, prompt.IsUndefined(err))
	assert.True(t, errs.Is(err, errs.CategoryRender))
}

func TestUnansweredPriorRendersEmpty(t *testing.T) {
	a := New(Input{
		Question: freeText("q1", "You said '{{ q0.answer }}' and '{{ q0.answer[2] }}'."),
		Prior:    model.PriorAnswers{"q0": model.Unanswered{Name: "q0"}},
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "You said '' and ''.\n", p.User.String())
}

func TestAnsweredPriorIsSubstituted(t *testing.T) {
	a := New(Input{
		Question: freeText("q1", "Why {{ q0.answer }}?"),
		Prior:    model.PriorAnswers{"q0": model.Answered{Name: "q0", Answer: "blue"}},
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "Why blue?\n", p.User.String())
}

func TestOptionsFallBackToPlaceholders(t *testing.T) {
	a := New(Input{
		Question: &model.Question{Name: "q1", Text: "Pick one", Type: model.QuestionTypeMultipleChoice, Options: "{{ q0 }}"},
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	for _, o := range resolve.PlaceholderOptions {
		assert.Contains(t, p.User.String(), o.(string))
	}

	a = New(Input{
		Question: &model.Question{Name: "q1", Text: "Pick one", Type: model.QuestionTypeMultipleChoice, Options: "{{ q0 }}"},
		Prior:    model.PriorAnswers{"q0": model.Answered{Name: "q0", Answer: []any{"tea", "coffee"}}},
	})
	p, err = a.Prompts()
	require.NoError(t, err)
	assert.Contains(t, p.User.String(), "tea\ncoffee")
}

func TestMemoryAndInstructions(t *testing.T) {
	survey := &model.Survey{
		Questions: []model.Question{
			*freeText("q0", "Favourite colour?"),
			*freeText("q1", "Why?"),
		},
		MemoryPlan:   model.MemoryPlan{"q1": {"q0"}},
		Instructions: []model.Instruction{{Name: "intro", Text: "Answer honestly.", Before: "q0"}},
	}
	a := New(Input{
		Question: &survey.Questions[1],
		Survey:   survey,
		Prior:    model.PriorAnswers{"q0": model.Answered{Name: "q0", Text: "Favourite colour?", Answer: "blue"}},
	})

	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "Answer honestly.\nWhy?\n"+memoryPreamble+"\tQuestion: Favourite colour?\n\tAnswer: blue\n", p.User.String())
}

func TestMemoryWithOpenBraceFails(t *testing.T) {
	survey := &model.Survey{
		Questions:  []model.Question{*freeText("q0", "Anything else?"), *freeText("q1", "Why?")},
		MemoryPlan: model.MemoryPlan{"q1": {"q0"}},
	}
	done := make(chan error, 1)
	go func() {
		a := New(Input{
			Question: &survey.Questions[1],
			Survey:   survey,
			Prior:    model.PriorAnswers{"q0": model.Answered{Name: "q0", Answer: "I like {{ curly braces"}},
		})
		_, err := a.Prompts()
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, errs.CategoryRender, errs.CategoryOf(err))
		assert.Equal(t, "template_syntax", errs.CodeOf(err))
	case <-time.After(5 * time.Second):
		t.Fatal("assembling never finished")
	}
}

func TestBarePriorNameIsAnswer(t *testing.T) {
	a := New(Input{
		Question: freeText("q1", "Why {{ q0 }}? Earlier: [{{ q0.answer[3] }}]"),
		Prior:    model.PriorAnswers{"q0": model.Answered{Name: "q0", Answer: []any{"blue"}}},
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "Why ['blue']? Earlier: []\n", p.User.String())
}

func TestCustomPlan(t *testing.T) {
	plan := prompt.MustPlan(
		[]prompt.Component{prompt.AgentPersona, prompt.QuestionInstructions},
		[]prompt.Component{prompt.PriorQuestionMemory, prompt.AgentInstructions},
	)
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Agent:    &model.Agent{Instruction: "Be terse.", Traits: map[string]any{"age": 30}},
		Plan:     plan,
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	assert.Equal(t, "Your traits: {'age': 30}\nHello?\n", p.User.String())
	assert.Equal(t, "Be terse.\n", p.System.String())
}

func TestCyclicScenarioFails(t *testing.T) {
	a := New(Input{
		Question: freeText("q0", "{{ a }}"),
		Scenario: model.NewScenario("a", "{{ b }}", "b", "{{ a }}"),
	})
	_, err := a.Prompts()
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompt.ErrCyclicTemplate))
}

func TestAttachmentsCollected(t *testing.T) {
	photo := &model.FileAttachment{Name: "photo.png", Base64: "aGk=", MimeType: "image/png"}
	a := New(Input{
		Question: freeText("q0", "Describe {{ scenario.photo }} in the context of {{ topic }}."),
		Scenario: model.NewScenario("photo", photo, "topic", "art"),
	})
	p, err := a.Prompts()
	require.NoError(t, err)
	require.Len(t, p.Attachments, 1)
	assert.Same(t, photo, p.Attachments[0])
	assert.Equal(t, "Describe  in the context of art.\n", p.User.String())
}

func TestComponentsAreMemoised(t *testing.T) {
	calls := map[prompt.Component]int{}
	a := New(Input{
		Question: freeText("q0", "Hello?"),
		Observer: func(c prompt.Component, _ time.Duration) { calls[c]++ },
	})
	_, err := a.Prompts()
	require.NoError(t, err)
	_, err = a.Prompts()
	require.NoError(t, err)

	assert.Len(t, calls, len(prompt.Components))
	for _, n := range calls {
		assert.Equal(t, 1, n)
	}
}

func TestRepr(t *testing.T) {
	assert.Equal(t, "", repr(nil))
	assert.Equal(t, "blue", repr("blue"))
	assert.Equal(t, "['a', 2, True]", repr([]any{"a", int64(2), true}))
	assert.Equal(t, "{'a': None, 'b': [1.5]}", repr(map[string]any{"b": []any{1.5}, "a": nil}))
}
