package model

// PriorAnswer is what a template sees when it references another question by
// name. It is either Answered or Unanswered; an Unanswered value renders and
// indexes to empty values so forward references never fail.
type PriorAnswer interface {
	QuestionName() string
	IsAnswered() bool
	// Attr returns answer, comment, generated_tokens, question_text or question_name
	Attr(name string) any
	// Index indexes into a list answer
	Index(i int) any

	priorAnswer()
}

// Answered is a materialised answer to an earlier question
type Answered struct {
	Name            string `json:"questionName"`
	Text            string `json:"questionText"`
	Answer          any    `json:"answer"`
	Comment         string `json:"comment,omitempty"`
	GeneratedTokens string `json:"generatedTokens,omitempty"`
}

func (a Answered) QuestionName() string { return a.Name }
func (a Answered) IsAnswered() bool     { return true }
func (a Answered) priorAnswer()         {}

func (a Answered) Attr(name string) any {
	switch name {
	case "answer":
		return a.Answer
	case "comment":
		return a.Comment
	case "generated_tokens":
		return a.GeneratedTokens
	case "question_text":
		return a.Text
	case "question_name":
		return a.Name
	}
	return nil
}

func (a Answered) Index(i int) any {
	list, ok := a.Answer.([]any)
	if !ok || i < 0 || i >= len(list) {
		return nil
	}
	return list[i]
}

// Unanswered stands in for a referenced question that has no answer yet
type Unanswered struct {
	Name string `json:"questionName"`
	Text string `json:"questionText"`
}

func (u Unanswered) QuestionName() string { return u.Name }
func (u Unanswered) IsAnswered() bool     { return false }
func (u Unanswered) priorAnswer()         {}
func (u Unanswered) Attr(string) any      { return "" }
func (u Unanswered) Index(int) any        { return "" }

// PriorAnswers maps question names to their prior-answer state
type PriorAnswers map[string]PriorAnswer

// Lookup returns the entry for name, or Unanswered when there is none
func (p PriorAnswers) Lookup(name string) PriorAnswer {
	if a, ok := p[name]; ok && a != nil {
		return a
	}
	return Unanswered{Name: name}
}
