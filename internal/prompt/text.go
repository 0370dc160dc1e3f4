package prompt

import "strings"

// Text is an immutable template string. Every operation returns a new value.
type Text struct {
	s string
}

func NewText(s string) Text {
	return Text{s: s}
}

func (t Text) String() string {
	return t.s
}

func (t Text) IsEmpty() bool {
	return strings.TrimSpace(t.s) == ""
}

// Concat joins two texts with no separator
func (t Text) Concat(other Text) Text {
	return Text{s: t.s + other.s}
}

func (t Text) Contains(sub string) bool {
	return strings.Contains(t.s, sub)
}

// HasVariables reports whether any template syntax is left
func (t Text) HasVariables() bool {
	return HasTemplateSyntax(t.s)
}

// Variables returns the root names referenced by the text
func (t Text) Variables() []string {
	return Variables(t.s)
}

// Render substitutes ctx to a fixed point. Unknown names render empty.
func (t Text) Render(ctx Context) (Text, error) {
	out, err := Render(t.s, ctx, false)
	if err != nil {
		return Text{}, err
	}
	return Text{s: out}, nil
}

// RenderStrict is Render, but a name missing from ctx is an error
func (t Text) RenderStrict(ctx Context) (Text, error) {
	out, err := Render(t.s, ctx, true)
	if err != nil {
		return Text{}, err
	}
	return Text{s: out}, nil
}
