// Package assembler builds the user and system prompts of one administration
// from its four components, arranged by a prompt plan.
package assembler

import (
	"fmt"
	"strings"
	"time"

	"agentsurvey/internal/model"
	"agentsurvey/internal/prompt"
	"agentsurvey/internal/question"
	"agentsurvey/internal/resolve"
)

const memoryPreamble = "Before the question you are now answering, you already answered the following question(s):\n"

// Observer is told how long each component took to render
type Observer func(component prompt.Component, elapsed time.Duration)

// Input is everything an administration's prompts depend on
type Input struct {
	Question *model.Question
	Agent    *model.Agent
	Scenario model.Scenario
	Prior    model.PriorAnswers

	// Survey supplies the memory plan, preamble instructions and the text of
	// prior questions. Optional.
	Survey *model.Survey

	Plan     prompt.Plan // zero value means prompt.DefaultPlan
	Registry *question.Registry
	Observer Observer
}

// Prompts is the assembled request
type Prompts struct {
	User        prompt.Text
	System      prompt.Text
	Attachments []*model.FileAttachment
}

// Model converts the prompts to their persisted form
func (p *Prompts) Model() model.Prompts {
	return model.Prompts{User: p.User.String(), System: p.System.String()}
}

// Assembler renders one administration's prompts. Components are built on
// first use and kept. An Assembler is not safe for concurrent use; each
// administration gets its own.
type Assembler struct {
	in Input

	typ         *question.Type
	constraints question.Constraints
	resolved    bool
	resolveErr  error

	components map[prompt.Component]prompt.Text
}

func New(in Input) *Assembler {
	if in.Registry == nil {
		in.Registry = question.Default()
	}
	if in.Plan.IsZero() {
		in.Plan = prompt.DefaultPlan
	}
	if in.Agent == nil {
		in.Agent = &model.Agent{}
	}
	return &Assembler{
		in:         in,
		components: make(map[prompt.Component]prompt.Text, len(prompt.Components)),
	}
}

// Resolved returns the question's type and its constraints after template
// resolution against the scenario and prior answers
func (a *Assembler) Resolved() (*question.Type, question.Constraints, error) {
	if !a.resolved {
		a.resolved = true
		a.typ, a.resolveErr = a.in.Registry.Lookup(a.in.Question.Type)
		if a.resolveErr == nil {
			a.constraints, a.resolveErr = a.typ.Resolve(a.in.Question, a.resolver())
		}
	}
	return a.typ, a.constraints, a.resolveErr
}

// Component renders one component to a fixed point
func (a *Assembler) Component(c prompt.Component) (prompt.Text, error) {
	if t, ok := a.components[c]; ok {
		return t, nil
	}

	start := time.Now()
	var (
		t   prompt.Text
		err error
	)
	switch c {
	case prompt.AgentInstructions:
		t, err = a.agentInstructions()
	case prompt.AgentPersona:
		t, err = a.agentPersona()
	case prompt.QuestionInstructions:
		t, err = a.questionInstructions()
	case prompt.PriorQuestionMemory:
		t, err = a.priorQuestionMemory()
	default:
		return prompt.Text{}, fmt.Errorf("unknown prompt component %q", c)
	}
	if err != nil {
		return prompt.Text{}, fmt.Errorf("render %s: %w", c, err)
	}
	if a.in.Observer != nil {
		a.in.Observer(c, time.Since(start))
	}
	a.components[c] = t
	return t, nil
}

// Prompts renders every component and arranges them by the plan
func (a *Assembler) Prompts() (*Prompts, error) {
	rendered := make(map[prompt.Component]prompt.Text, len(prompt.Components))
	for _, c := range prompt.Components {
		t, err := a.Component(c)
		if err != nil {
			return nil, err
		}
		rendered[c] = t
	}
	user, system := a.in.Plan.Arrange(rendered)
	return &Prompts{
		User:        user,
		System:      system,
		Attachments: a.attachments(),
	}, nil
}

func (a *Assembler) resolver() *resolve.Resolver {
	return resolve.New(a.in.Scenario, a.in.Prior, prompt.Context{"agent": a.traits()})
}

func (a *Assembler) traits() map[string]any {
	if a.in.Agent.Traits == nil {
		return map[string]any{}
	}
	return a.in.Agent.Traits
}

func (a *Assembler) agentInstructions() (prompt.Text, error) {
	if !a.in.Agent.HasTraits() {
		return prompt.Text{}, nil
	}
	t, err := prompt.NewText(a.in.Agent.InstructionText()).Render(a.personaContext())
	if err != nil {
		return prompt.Text{}, err
	}
	return withNewline(t), nil
}

func (a *Assembler) personaContext() prompt.Context {
	traits := a.traits()
	ctx := make(prompt.Context, len(traits)+2)
	for k, v := range traits {
		ctx[k] = v
	}
	ctx["traits"] = traits
	codebook := a.in.Agent.Codebook
	if codebook == nil {
		codebook = map[string]string{}
	}
	ctx["codebook"] = codebook
	return ctx
}

// agentPersona renders strictly: a persona naming a trait the agent lacks is an error
func (a *Assembler) agentPersona() (prompt.Text, error) {
	agent := a.in.Agent
	if !agent.HasTraits() {
		return prompt.Text{}, nil
	}
	src := agent.TraitsPresentationTemplate
	if src == "" {
		src = defaultPersona(agent)
	}
	t, err := prompt.NewText(src).RenderStrict(a.personaContext())
	if err != nil {
		return prompt.Text{}, err
	}
	return withNewline(t), nil
}

// defaultPersona lists the traits, under their codebook labels when there are any
func defaultPersona(agent *model.Agent) string {
	if len(agent.Codebook) == 0 {
		return "Your traits: " + repr(agent.Traits)
	}
	labelled := make(map[string]any, len(agent.Traits))
	for k, v := range agent.Traits {
		if label := agent.Codebook[k]; label != "" {
			labelled[label] = v
		} else {
			labelled[k] = v
		}
	}
	return "Your traits: " + repr(labelled)
}

func (a *Assembler) questionContext(c question.Constraints) prompt.Context {
	ctx := a.resolver().Context()
	for k, v := range question.TemplateValues(a.in.Question, c) {
		ctx[k] = v
	}
	return ctx
}

func (a *Assembler) questionInstructions() (prompt.Text, error) {
	typ, c, err := a.Resolved()
	if err != nil {
		return prompt.Text{}, err
	}
	q := a.in.Question

	var preamble strings.Builder
	if a.in.Survey != nil {
		for _, inst := range a.in.Survey.InstructionsFor(q.Name) {
			preamble.WriteString(ensureNewline(inst.Text))
		}
	}

	presentation := typ.Presentation
	if q.QuestionPresentation != "" {
		presentation = q.QuestionPresentation
	}
	instructions := typ.Instructions
	if q.AnsweringInstructions != "" {
		instructions = q.AnsweringInstructions
	}

	src := prompt.NewText(preamble.String()).
		Concat(prompt.NewText(ensureNewline(presentation))).
		Concat(prompt.NewText(instructions))
	return src.Render(a.questionContext(c))
}

func (a *Assembler) priorQuestionMemory() (prompt.Text, error) {
	if a.in.Survey == nil {
		return prompt.Text{}, nil
	}
	names := a.in.Survey.MemoryPlan[a.in.Question.Name]
	if len(names) == 0 {
		return prompt.Text{}, nil
	}

	var b strings.Builder
	b.WriteString(memoryPreamble)
	for _, name := range names {
		prior := a.in.Prior.Lookup(name)
		text, _ := prior.Attr("question_text").(string)
		if text == "" {
			if q, ok := a.in.Survey.Question(name); ok {
				text = q.Text
			}
		}
		fmt.Fprintf(&b, "\tQuestion: %s\n\tAnswer: %s\n", text, repr(prior.Attr("answer")))
		if comment, _ := prior.Attr("comment").(string); comment != "" {
			fmt.Fprintf(&b, "\tComment: %s\n", comment)
		}
	}

	_, c, err := a.Resolved()
	if err != nil {
		return prompt.Text{}, err
	}
	return prompt.NewText(b.String()).Render(a.questionContext(c))
}

// attachments collects the scenario file attachments the question text refers to
func (a *Assembler) attachments() []*model.FileAttachment {
	var out []*model.FileAttachment
	seen := map[string]bool{}
	for _, p := range prompt.Paths(a.in.Question.Text) {
		key := p.Root
		if p.Root == "scenario" {
			if len(p.Segments) == 0 || p.Segments[0].IsIndex {
				continue
			}
			key = p.Segments[0].Key
		}
		if seen[key] {
			continue
		}
		if fa, ok := a.in.Scenario.Attachment(key); ok {
			seen[key] = true
			out = append(out, fa)
		}
	}
	return out
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func withNewline(t prompt.Text) prompt.Text {
	return prompt.NewText(ensureNewline(t.String()))
}
