package prompt

import (
	"fmt"
	"strings"

	"agentsurvey/internal/errs"
)

// Component names one of the four prompt building blocks
type Component string

const (
	AgentInstructions    Component = "agent_instructions"
	AgentPersona         Component = "agent_persona"
	QuestionInstructions Component = "question_instructions"
	PriorQuestionMemory  Component = "prior_question_memory"
)

// Components is the complete component set in canonical order
var Components = []Component{AgentInstructions, AgentPersona, QuestionInstructions, PriorQuestionMemory}

// Plan partitions the four components into an ordered user prompt and an
// ordered system prompt. Plans are built through NewPlan, which rejects any
// partition that is not total. The zero Plan stands for DefaultPlan.
type Plan struct {
	user   []Component
	system []Component
}

// DefaultPlan puts the question in the user prompt and the persona in the system prompt
var DefaultPlan = MustPlan(
	[]Component{QuestionInstructions, PriorQuestionMemory},
	[]Component{AgentInstructions, AgentPersona},
)

// NewPlan checks that user and system together name every component exactly once
func NewPlan(user, system []Component) (Plan, error) {
	known := make(map[Component]bool, len(Components))
	for _, c := range Components {
		known[c] = true
	}

	seen := make(map[Component]string, len(Components))
	check := func(side string, comps []Component) error {
		for _, c := range comps {
			if !known[c] {
				return fmt.Errorf("unknown prompt component %q in %s prompt", c, side)
			}
			if prev, dup := seen[c]; dup {
				return fmt.Errorf("prompt component %q appears in %s and %s prompts", c, prev, side)
			}
			seen[c] = side
		}
		return nil
	}
	if err := check("user", user); err != nil {
		return Plan{}, errs.Wrap(err, errs.CategoryInvalidInput, "invalid_prompt_plan", "", false)
	}
	if err := check("system", system); err != nil {
		return Plan{}, errs.Wrap(err, errs.CategoryInvalidInput, "invalid_prompt_plan", "", false)
	}

	var missing []string
	for _, c := range Components {
		if _, ok := seen[c]; !ok {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return Plan{}, errs.New(errs.CategoryInvalidInput, "invalid_prompt_plan",
			"prompt plan is missing component(s): %s", strings.Join(missing, ", "))
	}

	return Plan{
		user:   append([]Component(nil), user...),
		system: append([]Component(nil), system...),
	}, nil
}

func MustPlan(user, system []Component) Plan {
	p, err := NewPlan(user, system)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Plan) IsZero() bool { return len(p.user) == 0 && len(p.system) == 0 }

func (p Plan) User() []Component   { return append([]Component(nil), p.user...) }
func (p Plan) System() []Component { return append([]Component(nil), p.system...) }

// Arrange concatenates rendered components in plan order, with no separator
func (p Plan) Arrange(rendered map[Component]Text) (user, system Text) {
	for _, c := range p.user {
		user = user.Concat(rendered[c])
	}
	for _, c := range p.system {
		system = system.Concat(rendered[c])
	}
	return user, system
}
