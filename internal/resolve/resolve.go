// Package resolve turns question attributes that may be literals, lists or
// single-variable templates into concrete values.
package resolve

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"
	"agentsurvey/internal/prompt"
)

// PlaceholderOptions stand in for an option list that could not be resolved
var PlaceholderOptions = []any{
	"<< Option 1 - Placeholder >>",
	"<< Option 2 - Placeholder >>",
	"<< Option 3 - Placeholder >>",
}

var ErrAmbiguousTemplate = errs.New(errs.CategoryResolution, "ambiguous_template",
	"attribute template must reference exactly one variable")

// Resolver resolves attributes against a scenario and prior answers
type Resolver struct {
	scenario model.Scenario
	prior    model.PriorAnswers
	extra    prompt.Context
}

// New creates a resolver. extra is additional context for rendering list
// elements, such as agent traits.
func New(scenario model.Scenario, prior model.PriorAnswers, extra prompt.Context) *Resolver {
	return &Resolver{scenario: scenario, prior: prior, extra: extra}
}

// Context is the template context for list elements: scenario values at the
// top level and under "scenario", prior answers by question name, then extra
func (r *Resolver) Context() prompt.Context {
	values := r.scenario.TemplateValues()
	ctx := make(prompt.Context, len(values)+len(r.prior)+len(r.extra)+1)
	for k, v := range values {
		ctx[k] = v
	}
	for name, a := range r.prior {
		ctx[name] = a
	}
	ctx["scenario"] = values
	for k, v := range r.extra {
		ctx[k] = v
	}
	return ctx
}

// Value resolves attr. found is false when a template could not be resolved.
func (r *Resolver) Value(attr any) (value any, found bool, err error) {
	if attr == nil {
		return nil, false, nil
	}
	src, isString := attr.(string)
	if !isString {
		if list, ok := prompt.AsList(attr); ok {
			rendered, err := r.renderList(list)
			return rendered, true, err
		}
		return attr, true, nil
	}
	if !prompt.HasTemplateSyntax(src) {
		return src, true, nil
	}

	paths, err := prompt.ParsePaths(src)
	if err != nil {
		return nil, false, err
	}
	if len(paths) != 1 {
		return nil, false, fmt.Errorf("%w: %q references %d variables", ErrAmbiguousTemplate, src, len(paths))
	}
	v, ok := r.lookup(paths[0])
	return v, ok, nil
}

// Options resolves an option list. placeholder is true when the fixed
// placeholder options were substituted for an unresolvable template.
func (r *Resolver) Options(attr any) (options []any, placeholder bool, err error) {
	v, found, err := r.Value(attr)
	if err != nil {
		return nil, false, err
	}
	if found {
		if list, ok := prompt.AsList(v); ok && len(list) > 0 {
			return list, false, nil
		}
		if s, ok := v.(string); ok {
			if list, ok := prompt.ParseList(s); ok && len(list) > 0 {
				return list, false, nil
			}
		}
	}
	if attr == nil {
		return nil, false, nil
	}
	return append([]any(nil), PlaceholderOptions...), true, nil
}

// Number resolves a numeric attribute. A miss yields nil, meaning unbounded.
func (r *Resolver) Number(attr any) (*float64, error) {
	v, found, err := r.Value(attr)
	if err != nil || !found {
		return nil, err
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r *Resolver) renderList(list []any) ([]any, error) {
	ctx := r.Context()
	out := make([]any, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok || !prompt.HasTemplateSyntax(s) {
			out[i] = e
			continue
		}
		rendered, err := prompt.Render(s, ctx, false)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}

func (r *Resolver) lookup(p prompt.Path) (any, bool) {
	if p.Root == "scenario" {
		if len(p.Segments) == 0 {
			return nil, false
		}
		first := p.Segments[0]
		if first.IsIndex {
			return nil, false
		}
		v, ok := r.scenario.Get(first.Key)
		if !ok {
			return nil, false
		}
		if _, isFile := v.(*model.FileAttachment); isFile {
			return nil, false
		}
		return prompt.Walk(v, p.Segments[1:])
	}
	return prompt.PriorValue(r.prior.Lookup(p.Root), p.Segments)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
