package resolve

import (
	"testing"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralOptionsPassThrough(t *testing.T) {
	r := New(model.Scenario{}, nil, nil)
	opts, placeholder, err := r.Options([]string{"Good", "Great"})
	require.NoError(t, err)
	assert.False(t, placeholder)
	assert.Equal(t, []any{"Good", "Great"}, opts)
}

func TestListElementsAreRendered(t *testing.T) {
	scenario := model.NewScenario("brands", []any{"Acme", "Globex"})
	r := New(scenario, nil, prompt.Context{"agent": map[string]any{"city": "Lyon"}})

	opts, _, err := r.Options([]any{"{{ brands[1] }}", "{{ scenario.brands[0] }}", "Shop in {{ agent.city }}", 7})
	require.NoError(t, err)
	assert.Equal(t, []any{"Globex", "Acme", "Shop in Lyon", 7}, opts)
}

func TestScenarioPrecedence(t *testing.T) {
	scenario := model.NewScenario("levels", []any{"low", "mid", "high"})
	prior := model.PriorAnswers{
		"levels": model.Answered{Name: "levels", Answer: []any{"wrong"}},
	}
	r := New(scenario, prior, nil)

	opts, placeholder, err := r.Options("{{ scenario.levels }}")
	require.NoError(t, err)
	assert.False(t, placeholder)
	assert.Equal(t, []any{"low", "mid", "high"}, opts)
}

func TestPriorAnswerOptions(t *testing.T) {
	prior := model.PriorAnswers{
		"q0": model.Answered{Name: "q0", Answer: []any{"red", "blue"}},
		"q1": model.Answered{Name: "q1", Answer: map[string]any{"colors": []any{"cyan"}}},
		"q2": model.Answered{Name: "q2", Answer: `["from", "text"]`},
	}
	r := New(model.Scenario{}, prior, nil)

	opts, placeholder, err := r.Options("{{ q0 }}")
	require.NoError(t, err)
	assert.False(t, placeholder)
	assert.Equal(t, []any{"red", "blue"}, opts)

	opts, _, err = r.Options("{{ q0.answer }}")
	require.NoError(t, err)
	assert.Equal(t, []any{"red", "blue"}, opts)

	opts, _, err = r.Options("{{ q1.answer.colors }}")
	require.NoError(t, err)
	assert.Equal(t, []any{"cyan"}, opts)

	opts, _, err = r.Options("{{ q2 }}")
	require.NoError(t, err)
	assert.Equal(t, []any{"from", "text"}, opts)
}

func TestMissFallsBackToPlaceholders(t *testing.T) {
	prior := model.PriorAnswers{"q0": model.Unanswered{Name: "q0"}}
	r := New(model.NewScenario("levels", "not a list"), prior, nil)

	for _, attr := range []any{"{{ q0 }}", "{{ q_missing.answer }}", "{{ scenario.nope }}", "{{ scenario.levels }}"} {
		opts, placeholder, err := r.Options(attr)
		require.NoError(t, err, attr)
		assert.True(t, placeholder, attr)
		assert.Equal(t, PlaceholderOptions, opts, attr)
	}
}

func TestAmbiguousTemplateIsAnError(t *testing.T) {
	r := New(model.Scenario{}, nil, nil)

	_, _, err := r.Options("{{ a }} {{ b }}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousTemplate)
	assert.Equal(t, errs.CategoryResolution, errs.CategoryOf(err))

	_, _, err = r.Value(`{{ "just a string" }}`)
	assert.ErrorIs(t, err, ErrAmbiguousTemplate)
}

func TestBarePriorAgreesWithRender(t *testing.T) {
	prior := model.PriorAnswers{"q0": model.Answered{Name: "q0", Answer: "tea", Comment: "hot"}}
	r := New(model.Scenario{}, prior, nil)

	v, found, err := r.Value("{{ q0 }}")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tea", v)

	out, err := prompt.Render("{{ q0 }}", r.Context(), false)
	require.NoError(t, err)
	assert.Equal(t, "tea", out)
}

func TestMalformedTemplateIsAnError(t *testing.T) {
	r := New(model.Scenario{}, nil, nil)
	_, found, err := r.Value("{{ q0")
	require.Error(t, err)
	assert.False(t, found)
	assert.Equal(t, "template_syntax", errs.CodeOf(err))
}

func TestNumberResolution(t *testing.T) {
	prior := model.PriorAnswers{"budget": model.Answered{Name: "budget", Answer: int64(250)}}
	r := New(model.NewScenario("cap", "100"), prior, nil)

	n, err := r.Number(10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *n)

	n, err = r.Number("{{ scenario.cap }}")
	require.NoError(t, err)
	assert.Equal(t, 100.0, *n)

	n, err = r.Number("{{ budget }}")
	require.NoError(t, err)
	assert.Equal(t, 250.0, *n)

	n, err = r.Number("{{ unknown }}")
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = r.Number(nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestNilOptionsStayNil(t *testing.T) {
	r := New(model.Scenario{}, nil, nil)
	opts, placeholder, err := r.Options(nil)
	require.NoError(t, err)
	assert.False(t, placeholder)
	assert.Nil(t, opts)
}
