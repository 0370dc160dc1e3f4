package question

import (
	"strconv"

	"agentsurvey/internal/coerce"
	"agentsurvey/internal/model"
)

const numericalPresentation = `{{ question_text }}
{%- if has_min_value %}
Minimum answer value: {{ min_value }}
{%- endif %}
{%- if has_max_value %}
Maximum answer value: {{ max_value }}
{%- endif %}
`

const numericalInstructions = `This question requires a numerical response in the form of an integer or decimal (e.g., -12, 0, 1, 2, 3.45, ...).
Respond with just your number on a single line.
If your response is equivalent to zero, report '0'
{% if include_comment %}After the answer, put a comment explaining your choice on the next line.
{% endif %}`

const linearScalePresentation = `{{ question_text }}
{%- for o in indexed_options %}
{{ o.text }}{% if o.label %} : {{ o.label }}{% endif %}
{%- endfor %}
`

const linearScaleInstructions = `You are being asked to respond with a single integer from the scale above.
Respond only with the number, on its own line.
{% if include_comment %}After the answer, you can put a comment explaining your choice on the next line.
{% endif %}`

func numericalType() *Type {
	return &Type{
		Tag:          model.QuestionTypeNumerical,
		Presentation: numericalPresentation,
		Instructions: numericalInstructions,
		Schema: func(c Constraints) map[string]any {
			s := map[string]any{"type": "number"}
			if c.Min != nil {
				s["minimum"] = *c.Min
			}
			if c.Max != nil {
				s["maximum"] = *c.Max
			}
			return s
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			if n, ok := coerce.ExtractNumber(answerLine); ok {
				return n, true
			}
			return coerce.ExtractNumber(raw)
		},
	}
}

func linearScaleType() *Type {
	return &Type{
		Tag:          model.QuestionTypeLinearScale,
		Presentation: linearScalePresentation,
		Instructions: linearScaleInstructions,
		Defaults: func(c *Constraints) {
			if (len(c.Options) == 0 || c.OptionsPlaceholder) && c.Min != nil && c.Max != nil && *c.Max >= *c.Min {
				c.Options = nil
				for v := int64(*c.Min); v <= int64(*c.Max); v++ {
					c.Options = append(c.Options, v)
				}
				c.OptionsPlaceholder = false
			}
		},
		Schema: func(c Constraints) map[string]any {
			if c.OptionsPlaceholder {
				return map[string]any{"type": "integer"}
			}
			values := make([]any, 0, len(c.Options))
			for _, o := range c.Options {
				if i, ok := coerce.Int(o); ok {
					values = append(values, i)
				}
			}
			return map[string]any{"type": "integer", "enum": values}
		},
		PostProcess: func(answer any, c Constraints) (any, error) {
			i, _ := coerce.Int(answer)
			return int64(i), nil
		},
		Repair: func(answerLine, raw string, c Constraints) (any, bool) {
			if i, ok := coerce.ExtractInt(answerLine); ok {
				return int64(i), true
			}
			for _, value := range sortedKeys(c.OptionLabels) {
				if label := c.OptionLabels[value]; label != "" && containsFold(raw, label) {
					if i, err := strconv.Atoi(value); err == nil {
						return int64(i), true
					}
				}
			}
			return nil, false
		},
	}
}
