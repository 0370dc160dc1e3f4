package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"

	"github.com/nikolalohinski/gonja"
)

// MaxNesting caps fixed-point rendering passes
const MaxNesting = 100

var ErrCyclicTemplate = errs.New(errs.CategoryRender, "cyclic_template", "template did not reach a fixed point")

// UndefinedVariableError lists names a template references but the context lacks
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	return "undefined template variable(s): " + strings.Join(e.Names, ", ")
}

// Context is the set of values visible to a template
type Context map[string]any

// Merge returns a new context with other's entries layered over c's
func (c Context) Merge(other Context) Context {
	out := make(Context, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// priorBinding is the context name a prior-answer path is rewritten to
const priorBinding = "__prior_"

// prepare splits prior answers out of the context. A bare prior name that
// escapes rewriting still renders as its answer.
func (c Context) prepare() (map[string]interface{}, map[string]model.PriorAnswer) {
	values := make(map[string]interface{}, len(c))
	var priors map[string]model.PriorAnswer
	for k, v := range c {
		if prior, ok := v.(model.PriorAnswer); ok {
			if priors == nil {
				priors = map[string]model.PriorAnswer{}
			}
			priors[k] = prior
			values[k] = priorOrEmpty(prior, nil)
			continue
		}
		values[k] = v
	}
	return values, priors
}

func priorOrEmpty(prior model.PriorAnswer, segs []Segment) any {
	if v, ok := PriorValue(prior, segs); ok {
		return v
	}
	return ""
}

// Render substitutes ctx into src until the output stops changing. Strict
// rendering fails when a referenced root name is missing from ctx.
func Render(src string, ctx Context, strict bool) (string, error) {
	values, priors := ctx.prepare()

	cur := src
	for pass := 0; pass < MaxNesting; pass++ {
		if !HasTemplateSyntax(cur) {
			return cur, nil
		}
		an, err := analyze(cur)
		if err != nil {
			return "", err
		}
		if strict {
			if missing := an.undefined(values); len(missing) > 0 {
				return "", errs.Wrap(&UndefinedVariableError{Names: missing}, errs.CategoryRender, "undefined_variable",
					"add the variable to the context or remove it from the template", false)
			}
		}

		bound, passValues := an.bindPriors(cur, priors, values)
		next, err := renderOnce(bound, passValues)
		if err != nil {
			return "", err
		}
		if next == cur {
			return cur, nil
		}
		cur = next
	}
	return "", fmt.Errorf("%w after %d passes", ErrCyclicTemplate, MaxNesting)
}

// bindPriors rewrites every path rooted at a prior answer into a fresh name
// bound to the looked-up value, so a placeholder or a missing key or index
// renders as "".
func (an *analysis) bindPriors(src string, priors map[string]model.PriorAnswer, values map[string]interface{}) (string, map[string]interface{}) {
	if len(priors) == 0 {
		return src, values
	}
	var b strings.Builder
	var extra map[string]interface{}
	last := 0
	for _, p := range an.paths {
		prior, ok := priors[p.Root]
		if !ok || p.start < last {
			continue
		}
		if extra == nil {
			extra = make(map[string]interface{}, len(values)+len(an.paths))
			for k, v := range values {
				extra[k] = v
			}
		}
		name := priorBinding + strconv.Itoa(len(extra)-len(values))
		extra[name] = priorOrEmpty(prior, p.Segments)
		b.WriteString(src[last:p.start])
		b.WriteString(name)
		last = p.end
	}
	if extra == nil {
		return src, values
	}
	b.WriteString(src[last:])
	return b.String(), extra
}

func renderOnce(src string, values map[string]interface{}) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = syntaxError(fmt.Errorf("parse template: %v", r))
		}
	}()
	tpl, err := gonja.FromString(src)
	if err != nil {
		return "", syntaxError(fmt.Errorf("parse template: %w", err))
	}
	out, err = tpl.Execute(values)
	if err != nil {
		return "", errs.Wrap(fmt.Errorf("execute template: %w", err), errs.CategoryRender, "template_execution", "", false)
	}
	return out, nil
}

func (an *analysis) undefined(values map[string]interface{}) []string {
	seen := map[string]bool{}
	var missing []string
	for _, p := range an.paths {
		if _, ok := values[p.Root]; ok || seen[p.Root] {
			continue
		}
		seen[p.Root] = true
		missing = append(missing, p.Root)
	}
	sort.Strings(missing)
	return missing
}

// IsUndefined reports whether err came from strict rendering of a missing name
func IsUndefined(err error) bool {
	var target *UndefinedVariableError
	return errors.As(err, &target)
}
