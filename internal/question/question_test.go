package question

import (
	"testing"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/prompt"
	"agentsurvey/internal/resolve"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func resolveFor(t *testing.T, q *model.Question, scenario model.Scenario) (*Type, Constraints) {
	t.Helper()
	typ, err := Default().Lookup(q.Type)
	require.NoError(t, err)
	c, err := typ.Resolve(q, resolve.New(scenario, nil, nil))
	require.NoError(t, err)
	return typ, c
}

func TestDefaultRegistry(t *testing.T) {
	tags := Default().Tags()
	assert.Len(t, tags, 12)
	assert.Contains(t, tags, model.QuestionTypeMatrix)

	_, err := Default().Lookup("essay")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CategoryInvalidInput))
	assert.Equal(t, "unknown_question_type", errs.CodeOf(err))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(freeTextType()))
	assert.Error(t, r.Register(freeTextType()))
	assert.Error(t, r.Register(&Type{Tag: "bare"}))
}

func TestResolveFixedOptions(t *testing.T) {
	_, c := resolveFor(t, &model.Question{Name: "q", Text: "Ok?", Type: model.QuestionTypeYesNo}, model.Scenario{})
	assert.Equal(t, []any{"Yes", "No"}, c.Options)
	assert.False(t, c.OptionsPlaceholder)
	assert.True(t, c.IncludeComment)
}

func TestResolveLinearScaleRange(t *testing.T) {
	q := &model.Question{Name: "q", Text: "Rate", Type: model.QuestionTypeLinearScale, MinValue: 1, MaxValue: 5}
	typ, c := resolveFor(t, q, model.Scenario{})
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, c.Options)

	s := typ.Schema(c)
	assert.Equal(t, "integer", s["type"])
	assert.Len(t, s["enum"], 5)
}

func TestResolveOptionsFromScenario(t *testing.T) {
	q := &model.Question{Name: "q", Text: "Pick", Type: model.QuestionTypeMultipleChoice, Options: "{{ scenario.choices }}"}
	_, c := resolveFor(t, q, model.NewScenario("choices", []any{"red", "blue"}))
	assert.Equal(t, []any{"red", "blue"}, c.Options)
	assert.False(t, c.OptionsPlaceholder)

	_, c = resolveFor(t, q, model.Scenario{})
	assert.True(t, c.OptionsPlaceholder)
	assert.Equal(t, resolve.PlaceholderOptions, c.Options)
}

func TestOptionSchema(t *testing.T) {
	c := Constraints{Options: []any{"Good", "Great", "OK", "Bad"}}
	assert.Equal(t, map[string]any{"enum": c.Options}, optionSchema(c))

	c.UseCodes = true
	assert.Equal(t, map[string]any{"type": "integer", "minimum": 0, "maximum": 3}, optionSchema(c))

	c.UseCodes = false
	c.Permissive = true
	assert.Empty(t, optionSchema(c))
}

func TestMatchOption(t *testing.T) {
	c := Constraints{Options: []any{"Good", "Very Good", "Bad"}}

	tests := []struct {
		text  string
		index int
		ok    bool
	}{
		{"good", 0, true},
		{`"Bad"`, 2, true},
		{"I would say very good overall", 1, true},
		{"nothing", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			i, ok := matchOption(tt.text, c)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.index, i)
			}
		})
	}

	tied := Constraints{Options: []any{"red", "blue"}}
	_, ok := matchOption("red or blue", tied)
	assert.False(t, ok)
}

func TestMultipleChoiceRepair(t *testing.T) {
	typ := multipleChoiceType(model.QuestionTypeMultipleChoice, nil)
	c := Constraints{Options: []any{"Good", "Great", "OK", "Bad"}, UseCodes: true}

	v, ok := typ.Repair("I pick option 7", "I pick option 7", c)
	require.True(t, ok)
	assert.Equal(t, int64(7), v)

	v, ok = typ.Repair("Great, definitely", "Great, definitely", c)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	c.UseCodes = false
	v, ok = typ.Repair("My answer: bad", "My answer: bad", c)
	require.True(t, ok)
	assert.Equal(t, "Bad", v)
}

func TestDecodeSelection(t *testing.T) {
	c := Constraints{Options: []any{"Good", "Great"}, UseCodes: true}
	v, err := decodeSelection(int64(1), c)
	require.NoError(t, err)
	assert.Equal(t, "Great", v)

	_, err = decodeSelection(int64(2), c)
	assert.Error(t, err)

	c.UseCodes = false
	v, err = decodeSelection("great", c)
	require.NoError(t, err)
	assert.Equal(t, "Great", v)
}

func TestNumericalRepair(t *testing.T) {
	typ := numericalType()
	v, ok := typ.Repair("The answer is 42", "The answer is 42", Constraints{})
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = typ.Repair("", "about 1,250.5 units", Constraints{})
	require.True(t, ok)
	assert.Equal(t, 1250.5, v)

	_, ok = typ.Repair("no idea", "no idea", Constraints{})
	assert.False(t, ok)
}

func TestCheckBoxRepairFromProse(t *testing.T) {
	typ := checkBoxType()
	c := Constraints{Options: []any{"Cats", "Dogs", "Fish"}}
	v, ok := typ.Repair("I like dogs and cats.", "I like dogs and cats.", c)
	require.True(t, ok)
	assert.Equal(t, []any{"Dogs", "Cats"}, v)
}

func TestRankSchemaDefaultsToAllOptions(t *testing.T) {
	q := &model.Question{Name: "q", Text: "Rank", Type: model.QuestionTypeRank, Options: []any{"a", "b", "c"}}
	typ, c := resolveFor(t, q, model.Scenario{})
	require.NotNil(t, c.NumSelections)
	assert.Equal(t, 3, *c.NumSelections)
	s := typ.Schema(c)
	assert.Equal(t, 3, s["minItems"])
	assert.Equal(t, 3, s["maxItems"])
}

func TestBudgetCheckAndCodes(t *testing.T) {
	typ := budgetType()
	total := 10.0
	c := Constraints{Options: []any{"rent", "food"}, BudgetSum: &total}

	assert.NoError(t, typ.Check(map[string]any{"rent": int64(6), "food": int64(4)}, c))
	assert.Error(t, typ.Check(map[string]any{"rent": int64(6), "food": int64(5)}, c))

	c.UseCodes = true
	out, err := typ.PostProcess(map[string]any{"0": int64(6), "1": int64(4)}, c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rent": int64(6), "food": int64(4)}, out)

	v, ok := typ.Repair("6, 4", "6, 4", c)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"0": int64(6), "1": int64(4)}, v)
}

func TestMatrixRepairRemapsRows(t *testing.T) {
	typ := matrixType()
	c := Constraints{Items: []any{"Price", "Quality"}, Options: []any{"Low", "High"}}
	raw := "Here you go:\n{\"price\": \"low\", \"Quality\": \"High\"}"
	v, ok := typ.Repair("Here you go:", raw, c)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"Price": "Low", "Quality": "High"}, v)
}

func TestTemplateValues(t *testing.T) {
	q := &model.Question{Name: "q", Text: "Pick", Type: model.QuestionTypeCheckBox}
	c := Constraints{Options: []any{"a", "b"}, MinSelections: intPtr(1), UseCodes: true}

	v := TemplateValues(q, c)
	assert.Equal(t, []string{"a", "b"}, v["question_options"])
	assert.Equal(t, true, v["has_min_selections"])
	assert.Equal(t, 1, v["min_selections"])
	assert.Equal(t, false, v["has_max_selections"])
	indexed := v["indexed_options"].([]map[string]any)
	assert.Equal(t, 1, indexed[1]["code"])
	assert.Equal(t, "b", indexed[1]["text"])
}

func TestPresentationRenders(t *testing.T) {
	q := &model.Question{Name: "q", Text: "How was it?", Type: model.QuestionTypeMultipleChoice, Options: []any{"Good", "Bad"}, UseCodes: true}
	typ, c := resolveFor(t, q, model.Scenario{})

	ctx := prompt.Context(TemplateValues(q, c))
	out, err := prompt.Render(typ.Presentation+typ.Instructions, ctx, false)
	require.NoError(t, err)
	assert.Contains(t, out, "How was it?")
	assert.Contains(t, out, "0: Good")
	assert.Contains(t, out, "1: Bad")
	assert.Contains(t, out, "Respond only with the code")
	assert.Contains(t, out, "put a comment")
	assert.NotContains(t, out, "{{")
}
