// Package question holds the question type table: for each type tag, how
// its answer schema is built, how answers are checked, post-processed and
// repaired, and how the question is presented to the model.
package question

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"agentsurvey/internal/coerce"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/resolve"
)

// Constraints are a question's attributes after template resolution
type Constraints struct {
	Options            []any
	OptionsPlaceholder bool
	Min                *float64
	Max                *float64
	Items              []any
	OptionLabels       map[string]string
	MinSelections      *int
	MaxSelections      *int
	NumSelections      *int
	MinListItems       *int
	MaxListItems       *int
	BudgetSum          *float64
	AnswerTemplate     map[string]any
	UseCodes           bool
	IncludeComment     bool
	Permissive         bool
}

// OptionTexts renders options as display strings
func (c Constraints) OptionTexts() []string {
	out := make([]string, len(c.Options))
	for i, o := range c.Options {
		out[i] = display(o)
	}
	return out
}

// Type describes one question type
type Type struct {
	Tag model.QuestionType

	// Presentation and Instructions are the default templates
	Presentation string
	Instructions string

	// WholeReply makes the entire reply the answer, with no comment line
	WholeReply bool

	// ParseAnswer converts the answer line of a plain-text reply. Defaults to coerce.Scalar.
	ParseAnswer func(line string, c Constraints) any

	// Defaults fills constraints the type implies, such as fixed options
	Defaults func(c *Constraints)

	// Schema returns the JSON Schema of the answer value
	Schema func(c Constraints) map[string]any

	// Check enforces rules a JSON Schema cannot express. Optional.
	Check func(answer any, c Constraints) error

	// PostProcess turns a structurally valid answer into its final form. Optional.
	PostProcess func(answer any, c Constraints) (any, error)

	// Repair tries once to coerce an invalid reply into a valid answer. answerLine
	// is the first line of the reply and raw the whole reply.
	Repair func(answerLine, raw string, c Constraints) (any, bool)
}

// Parse converts an answer line with the type's parser
func (t *Type) Parse(line string, c Constraints) any {
	if t.ParseAnswer != nil {
		return t.ParseAnswer(line, c)
	}
	return coerce.Scalar(line)
}

// Registry maps type tags to types
type Registry struct {
	mu    sync.RWMutex
	types map[model.QuestionType]*Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[model.QuestionType]*Type)}
}

// Register adds a type. Registering the same tag twice is an error.
func (r *Registry) Register(t *Type) error {
	if t.Tag == "" || t.Schema == nil {
		return fmt.Errorf("question type needs a tag and a schema builder")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Tag]; exists {
		return fmt.Errorf("question type %q already registered", t.Tag)
	}
	r.types[t.Tag] = t
	return nil
}

// Lookup returns the type registered under tag
func (r *Registry) Lookup(tag model.QuestionType) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[tag]
	if !ok {
		return nil, errs.New(errs.CategoryInvalidInput, "unknown_question_type", "unknown question type %q", tag)
	}
	return t, nil
}

// Tags lists registered type tags in sorted order
func (r *Registry) Tags() []model.QuestionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.QuestionType, 0, len(r.types))
	for tag := range r.types {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry holding every built-in type
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		for _, t := range builtinTypes() {
			if err := defaultRegistry.Register(t); err != nil {
				panic(err)
			}
		}
	})
	return defaultRegistry
}

func builtinTypes() []*Type {
	return []*Type{
		freeTextType(),
		multipleChoiceType(model.QuestionTypeMultipleChoice, nil),
		multipleChoiceType(model.QuestionTypeYesNo, []any{"Yes", "No"}),
		multipleChoiceType(model.QuestionTypeLikertFive, []any{
			"Strongly disagree", "Disagree", "Neutral", "Agree", "Strongly agree",
		}),
		checkBoxType(),
		numericalType(),
		linearScaleType(),
		listType(),
		rankType(),
		matrixType(),
		budgetType(),
		extractType(),
	}
}

// Resolve builds the constraints of q, resolving template attributes
func (t *Type) Resolve(q *model.Question, r *resolve.Resolver) (Constraints, error) {
	c := Constraints{
		OptionLabels:   q.OptionLabels,
		MinSelections:  q.MinSelections,
		MaxSelections:  q.MaxSelections,
		NumSelections:  q.NumSelections,
		MinListItems:   q.MinListItems,
		MaxListItems:   q.MaxListItems,
		BudgetSum:      q.BudgetSum,
		AnswerTemplate: q.AnswerTemplate,
		UseCodes:       q.UseCodes,
		IncludeComment: q.IncludeComment(),
		Permissive:     q.Permissive,
	}

	var err error
	if c.Options, c.OptionsPlaceholder, err = r.Options(q.Options); err != nil {
		return c, fmt.Errorf("question %s options: %w", q.Name, err)
	}
	if q.Items != nil {
		if c.Items, _, err = r.Options(q.Items); err != nil {
			return c, fmt.Errorf("question %s items: %w", q.Name, err)
		}
	}
	if c.Min, err = r.Number(q.MinValue); err != nil {
		return c, fmt.Errorf("question %s min value: %w", q.Name, err)
	}
	if c.Max, err = r.Number(q.MaxValue); err != nil {
		return c, fmt.Errorf("question %s max value: %w", q.Name, err)
	}
	if t.Defaults != nil {
		t.Defaults(&c)
	}
	return c, nil
}

func display(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
