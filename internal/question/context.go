package question

import (
	"encoding/json"
	"fmt"

	"agentsurvey/internal/model"
)

// TemplateValues is the context the presentation and instruction templates
// of q are rendered with
func TemplateValues(q *model.Question, c Constraints) map[string]any {
	texts := c.OptionTexts()
	indexed := make([]map[string]any, len(texts))
	for i, text := range texts {
		indexed[i] = map[string]any{
			"code":  i,
			"text":  text,
			"label": c.OptionLabels[text],
		}
	}

	items := make([]string, len(c.Items))
	for i, it := range c.Items {
		items[i] = display(it)
	}

	v := map[string]any{
		"question_name":    q.Name,
		"question_text":    q.Text,
		"question_type":    string(q.Type),
		"question_options": texts,
		"indexed_options":  indexed,
		"items":            items,
		"option_labels":    c.OptionLabels,
		"use_code":         c.UseCodes,
		"include_comment":  c.IncludeComment,
		"permissive":       c.Permissive,
	}

	setFloat(v, "min_value", c.Min)
	setFloat(v, "max_value", c.Max)
	setFloat(v, "budget_sum", c.BudgetSum)
	setInt(v, "min_selections", c.MinSelections)
	setInt(v, "max_selections", c.MaxSelections)
	setInt(v, "num_selections", c.NumSelections)
	setInt(v, "min_list_items", c.MinListItems)
	setInt(v, "max_list_items", c.MaxListItems)

	if q.Type == model.QuestionTypeMatrix {
		v["matrix_example"] = matrixExample(items, texts, c.UseCodes)
	}
	if q.Type == model.QuestionTypeBudget {
		v["budget_example"] = budgetExample(texts, c)
	}
	if c.AnswerTemplate != nil {
		data, err := json.Marshal(c.AnswerTemplate)
		if err == nil {
			v["answer_template_json"] = string(data)
		}
	}
	return v
}

func setFloat(v map[string]any, key string, f *float64) {
	v["has_"+key] = f != nil
	if f != nil {
		v[key] = normalizeNumber(*f)
	} else {
		v[key] = ""
	}
}

func setInt(v map[string]any, key string, i *int) {
	v["has_"+key] = i != nil
	if i != nil {
		v[key] = *i
	} else {
		v[key] = 0
	}
}

func matrixExample(items, options []string, useCodes bool) string {
	example := make(map[string]any, len(items))
	for _, it := range items {
		if useCodes {
			example[it] = 0
		} else if len(options) > 0 {
			example[it] = options[0]
		}
	}
	data, _ := json.Marshal(example)
	return string(data)
}

func budgetExample(options []string, c Constraints) string {
	if len(options) == 0 || c.BudgetSum == nil {
		return "{}"
	}
	example := make(map[string]any, len(options))
	for i, o := range options {
		key := o
		if c.UseCodes {
			key = fmt.Sprint(i)
		}
		example[key] = 0
	}
	first := options[0]
	if c.UseCodes {
		first = "0"
	}
	example[first] = normalizeNumber(*c.BudgetSum)
	data, _ := json.Marshal(example)
	return string(data)
}
