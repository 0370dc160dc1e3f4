package question

import (
	"fmt"
	"sort"
	"strings"

	"agentsurvey/internal/coerce"
	"agentsurvey/internal/model"
)

const choicePresentation = `{{ question_text }}
{%- for o in indexed_options %}
{% if use_code %}{{ o.code }}: {% endif %}{{ o.text }}
{%- endfor %}
`

const choiceInstructions = `Only 1 option may be selected.
{% if use_code %}Respond only with the code corresponding to one of the options. E.g., "1" or "5" by itself.{% else %}Respond only with a string corresponding to one of the options.{% endif %}
{% if include_comment %}After the answer, you can put a comment explaining why you chose that option on the next line.
{% endif %}`

const checkBoxInstructions = `{% if has_min_selections and has_max_selections and min_selections == max_selections %}You must select exactly {{ min_selections }} options.
{% elif has_min_selections and has_max_selections %}Please select at least {{ min_selections }} and at most {{ max_selections }} options.
{% elif has_min_selections %}Please select at least {{ min_selections }} options.
{% elif has_max_selections %}Please select at most {{ max_selections }} options.
{% endif %}{% if use_code %}Respond only with a comma-separated list of the codes of the options that apply, in square brackets. E.g., [0, 1, 3]{% else %}Respond only with a comma-separated list of the options that apply, in square brackets. E.g., ["Option A", "Option C"]{% endif %}
{% if include_comment %}After the answer, you can put a comment explaining your choice on the next line.
{% endif %}`

const rankInstructions = `You have been asked to rank {{ num_selections }} of the options, most preferred first.
{% if use_code %}Respond only with a comma-separated list of the ranked option codes, in square brackets. E.g., [2, 0, 1]{% else %}Respond only with a comma-separated list of the ranked options, in square brackets. E.g., ["Option C", "Option A"]{% endif %}
{% if include_comment %}After the answer, you can put a comment explaining your ranking on the next line.
{% endif %}`

// optionSchema is the schema of a single selected option
func optionSchema(c Constraints) map[string]any {
	if c.UseCodes {
		return map[string]any{
			"type":    "integer",
			"minimum": 0,
			"maximum": len(c.Options) - 1,
		}
	}
	if c.Permissive || len(c.Options) == 0 {
		return map[string]any{}
	}
	return map[string]any{"enum": c.Options}
}

// matchOption finds the option named in text: an exact case-insensitive
// match wins, otherwise the longest option text that text contains
func matchOption(text string, c Constraints) (int, bool) {
	needle := strings.ToLower(coerce.Text(text))
	if needle == "" {
		return 0, false
	}
	texts := c.OptionTexts()
	for i, o := range texts {
		if strings.ToLower(o) == needle {
			return i, true
		}
	}

	best, bestLen, ties := -1, 0, 0
	for i, o := range texts {
		lo := strings.ToLower(o)
		if lo == "" || !strings.Contains(needle, lo) {
			continue
		}
		switch {
		case len(lo) > bestLen:
			best, bestLen, ties = i, len(lo), 0
		case len(lo) == bestLen:
			ties++
		}
	}
	if best < 0 || ties > 0 {
		return 0, false
	}
	return best, true
}

// selectedValue maps one parsed selection to its schema form
func selectedValue(v any, c Constraints) (any, bool) {
	if c.UseCodes {
		if i, ok := coerce.Int(v); ok {
			return int64(i), true
		}
		if s, ok := v.(string); ok {
			if i, ok := matchOption(s, c); ok {
				return int64(i), true
			}
		}
		return nil, false
	}
	if i, ok := matchOption(display(v), c); ok {
		return c.Options[i], true
	}
	return nil, false
}

// decodeSelection turns a code into its option, or returns the canonical option for a text answer
func decodeSelection(v any, c Constraints) (any, error) {
	if c.UseCodes {
		i, ok := coerce.Int(v)
		if !ok || i < 0 || i >= len(c.Options) {
			return nil, fmt.Errorf("code %v is not one of 0..%d", v, len(c.Options)-1)
		}
		return c.Options[i], nil
	}
	if i, ok := matchOption(display(v), c); ok {
		return c.Options[i], nil
	}
	if c.Permissive {
		return v, nil
	}
	return nil, fmt.Errorf("%v is not one of the options", v)
}

func decodeSelections(v any, c Constraints) (any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]any, len(list))
	for i, e := range list {
		d, err := decodeSelection(e, c)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// repairSelections maps each item of a delimited list; when that fails it
// collects the options mentioned anywhere in raw, in order of appearance
func repairSelections(answerLine, raw string, c Constraints) (any, bool) {
	items := coerce.SplitList(answerLine)
	if list, ok := coerce.EmbeddedList(raw); ok && len(items) == 0 {
		items = list
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		v, ok := selectedValue(it, c)
		if !ok {
			out = nil
			break
		}
		out = append(out, v)
	}
	if len(out) > 0 {
		return out, true
	}

	lower := strings.ToLower(raw)
	type hit struct {
		at    int
		value any
	}
	var hits []hit
	for i, o := range c.OptionTexts() {
		at := strings.Index(lower, strings.ToLower(o))
		if o == "" || at < 0 {
			continue
		}
		v := c.Options[i]
		if c.UseCodes {
			v = int64(i)
		}
		hits = append(hits, hit{at: at, value: v})
	}
	if len(hits) == 0 {
		return nil, false
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	out = make([]any, len(hits))
	for i, h := range hits {
		out[i] = h.value
	}
	return out, true
}

func multipleChoiceType(tag model.QuestionType, fixed []any) *Type {
	return &Type{
		Tag:          tag,
		Presentation: choicePresentation,
		Instructions: choiceInstructions,
		Defaults: func(c *Constraints) {
			if fixed != nil && (len(c.Options) == 0 || c.OptionsPlaceholder) {
				c.Options = append([]any(nil), fixed...)
				c.OptionsPlaceholder = false
			}
		},
		ParseAnswer: func(line string, c Constraints) any {
			if c.UseCodes {
				return coerce.Scalar(line)
			}
			return coerce.Text(line)
		},
		Schema: optionSchema,
		PostProcess: func(answer any, c Constraints) (any, error) {
			return decodeSelection(answer, c)
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			if c.UseCodes {
				// a stated code is taken at face value, in range or not
				if i, ok := coerce.ExtractInt(answerLine); ok {
					return int64(i), true
				}
			}
			for _, text := range []string{answerLine, raw} {
				if i, ok := matchOption(text, c); ok {
					if c.UseCodes {
						return int64(i), true
					}
					return c.Options[i], true
				}
			}
			return nil, false
		},
	}
}

func checkBoxType() *Type {
	return &Type{
		Tag:          model.QuestionTypeCheckBox,
		Presentation: choicePresentation,
		Instructions: checkBoxInstructions,
		ParseAnswer: func(line string, c Constraints) any {
			list := coerce.SplitList(line)
			if list == nil {
				return []any{}
			}
			return list
		},
		Schema: func(c Constraints) map[string]any {
			s := map[string]any{
				"type":        "array",
				"items":       optionSchema(c),
				"uniqueItems": true,
			}
			if c.MinSelections != nil {
				s["minItems"] = *c.MinSelections
			}
			if c.MaxSelections != nil {
				s["maxItems"] = *c.MaxSelections
			}
			return s
		},
		PostProcess: func(answer any, c Constraints) (any, error) {
			return decodeSelections(answer, c)
		},
		Repair: repairSelections,
	}
}

func rankType() *Type {
	return &Type{
		Tag:          model.QuestionTypeRank,
		Presentation: choicePresentation,
		Instructions: rankInstructions,
		Defaults: func(c *Constraints) {
			if c.NumSelections == nil || *c.NumSelections > len(c.Options) {
				n := len(c.Options)
				c.NumSelections = &n
			}
		},
		ParseAnswer: func(line string, c Constraints) any {
			list := coerce.SplitList(line)
			if list == nil {
				return []any{}
			}
			return list
		},
		Schema: func(c Constraints) map[string]any {
			n := len(c.Options)
			if c.NumSelections != nil {
				n = *c.NumSelections
			}
			return map[string]any{
				"type":        "array",
				"items":       optionSchema(c),
				"uniqueItems": true,
				"minItems":    n,
				"maxItems":    n,
			}
		},
		PostProcess: func(answer any, c Constraints) (any, error) {
			return decodeSelections(answer, c)
		},
		Repair: repairSelections,
	}
}
