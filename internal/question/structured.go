package question

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"agentsurvey/internal/coerce"
	"agentsurvey/internal/model"
)

const plainPresentation = `{{ question_text }}
`

const listInstructions = `Your response should be only a valid JSON list of strings on a single line, e.g., ["item one", "item two"].
{% if has_min_list_items and has_max_list_items %}The list must contain between {{ min_list_items }} and {{ max_list_items }} items.
{% elif has_min_list_items %}The list must contain at least {{ min_list_items }} items.
{% elif has_max_list_items %}The list must contain at most {{ max_list_items }} items.
{% endif %}{% if include_comment %}After the answer, you can put a comment explaining your response on the next line.
{% endif %}`

const matrixPresentation = `{{ question_text }}
Rows:
{%- for item in items %}
- {{ item }}
{%- endfor %}
Options:
{%- for o in indexed_options %}
{% if use_code %}{{ o.code }}: {% endif %}{{ o.text }}
{%- endfor %}
`

const matrixInstructions = `Respond with a JSON object on a single line that maps every row to {% if use_code %}the code of {% endif %}exactly one option, e.g., {{ matrix_example }}
{% if include_comment %}After the answer, you can put a comment explaining your choices on the next line.
{% endif %}`

const budgetInstructions = `You have a budget of {{ budget_sum }} to allocate among the options above.
Respond with a JSON object on a single line mapping each {% if use_code %}option code{% else %}option{% endif %} to the amount you allocate to it, e.g., {{ budget_example }}
The amounts must be non-negative and add up to {{ budget_sum }}.
{% if include_comment %}After the answer, you can put a comment explaining your allocation on the next line.
{% endif %}`

const extractInstructions = `Extract the requested information and respond with a single line of JSON that fills in this template: {{ answer_template_json }}
Use null for any value you cannot determine.
`

func freeTextType() *Type {
	return &Type{
		Tag:          model.QuestionTypeFreeText,
		Presentation: plainPresentation,
		WholeReply:   true,
		ParseAnswer: func(line string, c Constraints) any {
			return strings.TrimSpace(line)
		},
		Schema: func(c Constraints) map[string]any {
			return map[string]any{"type": "string"}
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			text := strings.TrimSpace(raw)
			return text, text != ""
		},
	}
}

func listType() *Type {
	toStrings := func(list []any) []any {
		out := make([]any, len(list))
		for i, e := range list {
			out[i] = display(e)
		}
		return out
	}
	return &Type{
		Tag:          model.QuestionTypeList,
		Presentation: plainPresentation,
		Instructions: listInstructions,
		ParseAnswer: func(line string, c Constraints) any {
			if list, ok := coerce.Scalar(line).([]any); ok {
				return toStrings(list)
			}
			return toStrings(coerce.SplitList(line))
		},
		Schema: func(c Constraints) map[string]any {
			s := map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			}
			if c.MinListItems != nil {
				s["minItems"] = *c.MinListItems
			}
			if c.MaxListItems != nil {
				s["maxItems"] = *c.MaxListItems
			}
			return s
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			if list, ok := coerce.EmbeddedList(raw); ok {
				return toStrings(list), true
			}
			list := coerce.SplitList(raw)
			return toStrings(list), len(list) > 0
		},
	}
}

func matrixType() *Type {
	return &Type{
		Tag:          model.QuestionTypeMatrix,
		Presentation: matrixPresentation,
		Instructions: matrixInstructions,
		Schema: func(c Constraints) map[string]any {
			props := make(map[string]any, len(c.Items))
			required := make([]any, 0, len(c.Items))
			for _, item := range c.Items {
				key := display(item)
				props[key] = optionSchema(c)
				required = append(required, key)
			}
			return map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			}
		},
		PostProcess: func(answer any, c Constraints) (any, error) {
			obj, ok := answer.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected an object, got %T", answer)
			}
			out := make(map[string]any, len(obj))
			for k, v := range obj {
				d, err := decodeSelection(v, c)
				if err != nil {
					return nil, fmt.Errorf("row %s: %w", k, err)
				}
				out[k] = d
			}
			return out, nil
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			obj, ok := coerce.EmbeddedObject(raw)
			if !ok {
				return nil, false
			}
			rows := make([]string, len(c.Items))
			for i, item := range c.Items {
				rows[i] = display(item)
			}
			out := make(map[string]any, len(obj))
			for k, v := range obj {
				row, ok := remapKey(k, rows)
				if !ok {
					continue
				}
				if sel, ok := selectedValue(v, c); ok {
					out[row] = sel
				} else {
					out[row] = v
				}
			}
			return out, len(out) > 0
		},
	}
}

func budgetType() *Type {
	keys := func(c Constraints) []string {
		out := make([]string, len(c.Options))
		for i, o := range c.Options {
			if c.UseCodes {
				out[i] = fmt.Sprint(i)
			} else {
				out[i] = display(o)
			}
		}
		return out
	}
	return &Type{
		Tag:          model.QuestionTypeBudget,
		Presentation: choicePresentation,
		Instructions: budgetInstructions,
		Defaults: func(c *Constraints) {
			if c.BudgetSum == nil {
				total := 100.0
				c.BudgetSum = &total
			}
		},
		Schema: func(c Constraints) map[string]any {
			ks := keys(c)
			props := make(map[string]any, len(ks))
			required := make([]any, 0, len(ks))
			for _, k := range ks {
				props[k] = map[string]any{"type": "number", "minimum": 0}
				required = append(required, k)
			}
			return map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			}
		},
		Check: func(answer any, c Constraints) error {
			obj, ok := answer.(map[string]any)
			if !ok || c.BudgetSum == nil {
				return nil
			}
			var sum float64
			for _, v := range obj {
				n, _ := coerce.Number(v)
				sum += n
			}
			if math.Abs(sum-*c.BudgetSum) > 1e-6 {
				return fmt.Errorf("allocations add up to %v, expected %v", sum, *c.BudgetSum)
			}
			return nil
		},
		PostProcess: func(answer any, c Constraints) (any, error) {
			obj, ok := answer.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected an object, got %T", answer)
			}
			if !c.UseCodes {
				return obj, nil
			}
			out := make(map[string]any, len(obj))
			for k, v := range obj {
				i, ok := coerce.Int(k)
				if !ok || i < 0 || i >= len(c.Options) {
					return nil, fmt.Errorf("unknown option code %q", k)
				}
				out[display(c.Options[i])] = v
			}
			return out, nil
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			ks := keys(c)
			out := make(map[string]any, len(ks))
			if obj, ok := coerce.EmbeddedObject(raw); ok {
				texts := c.OptionTexts()
				for k, v := range obj {
					key, ok := remapKey(k, ks)
					if !ok && c.UseCodes {
						if i, matched := matchOption(k, c); matched {
							key, ok = ks[i], true
						}
					} else if !ok {
						key, ok = remapKey(k, texts)
					}
					n, isNum := coerce.Number(v)
					if ok && isNum {
						out[key] = normalizeNumber(n)
					}
				}
				return out, len(out) > 0
			}
			// bare amounts in option order
			amounts := coerce.SplitList(answerLine)
			if len(amounts) != len(ks) {
				return nil, false
			}
			for i, a := range amounts {
				n, ok := coerce.Number(a)
				if !ok {
					return nil, false
				}
				out[ks[i]] = normalizeNumber(n)
			}
			return out, true
		},
	}
}

func extractType() *Type {
	return &Type{
		Tag:          model.QuestionTypeExtract,
		Presentation: plainPresentation,
		Instructions: extractInstructions,
		Schema: func(c Constraints) map[string]any {
			props := make(map[string]any, len(c.AnswerTemplate))
			required := make([]any, 0, len(c.AnswerTemplate))
			for _, k := range sortedKeys(c.AnswerTemplate) {
				props[k] = map[string]any{}
				required = append(required, k)
			}
			return map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			}
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			obj, ok := coerce.EmbeddedObject(raw)
			if !ok {
				return nil, false
			}
			out := make(map[string]any, len(c.AnswerTemplate))
			for k := range c.AnswerTemplate {
				out[k] = obj[k]
			}
			return out, true
		},
	}
}

// remapKey maps a reply key onto one of names: an exact or case-insensitive
// name match, or a numeric index into names
func remapKey(k string, names []string) (string, bool) {
	for _, n := range names {
		if n == k {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(k)) {
			return n, true
		}
	}
	if i, ok := coerce.Int(k); ok && i >= 0 && i < len(names) {
		return names[i], true
	}
	return "", false
}

func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
