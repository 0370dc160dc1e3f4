package model

import (
	"fmt"
	"regexp"
)

// QuestionType selects the schema, repair heuristic and templates of a question
type QuestionType string

const (
	QuestionTypeFreeText       QuestionType = "free_text"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeCheckBox       QuestionType = "checkbox"
	QuestionTypeNumerical      QuestionType = "numerical"
	QuestionTypeLinearScale    QuestionType = "linear_scale"
	QuestionTypeYesNo          QuestionType = "yes_no"
	QuestionTypeLikertFive     QuestionType = "likert_five"
	QuestionTypeList           QuestionType = "list"
	QuestionTypeRank           QuestionType = "rank"
	QuestionTypeMatrix         QuestionType = "matrix"
	QuestionTypeBudget         QuestionType = "budget"
	QuestionTypeExtract        QuestionType = "extract"
)

// Question is a survey question definition.
//
// Options, MinValue, MaxValue and Items may hold a literal (list or number) or a
// template string such as "{{ scenario.levels }}" that is resolved per administration.
type Question struct {
	Name string       `json:"name" bson:"name" yaml:"name"`
	Text string       `json:"text" bson:"text" yaml:"text"`
	Type QuestionType `json:"type" bson:"type" yaml:"type"`

	Options  any `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"`
	MinValue any `json:"minValue,omitempty" bson:"minValue,omitempty" yaml:"min_value,omitempty"`
	MaxValue any `json:"maxValue,omitempty" bson:"maxValue,omitempty" yaml:"max_value,omitempty"`
	Items    any `json:"items,omitempty" bson:"items,omitempty" yaml:"items,omitempty"` // matrix rows

	OptionLabels   map[string]string `json:"optionLabels,omitempty" bson:"optionLabels,omitempty" yaml:"option_labels,omitempty"` // linear scale
	MinSelections  *int              `json:"minSelections,omitempty" bson:"minSelections,omitempty" yaml:"min_selections,omitempty"`
	MaxSelections  *int              `json:"maxSelections,omitempty" bson:"maxSelections,omitempty" yaml:"max_selections,omitempty"`
	NumSelections  *int              `json:"numSelections,omitempty" bson:"numSelections,omitempty" yaml:"num_selections,omitempty"` // rank
	MinListItems   *int              `json:"minListItems,omitempty" bson:"minListItems,omitempty" yaml:"min_list_items,omitempty"`
	MaxListItems   *int              `json:"maxListItems,omitempty" bson:"maxListItems,omitempty" yaml:"max_list_items,omitempty"`
	BudgetSum      *float64          `json:"budgetSum,omitempty" bson:"budgetSum,omitempty" yaml:"budget_sum,omitempty"`
	AnswerTemplate map[string]any    `json:"answerTemplate,omitempty" bson:"answerTemplate,omitempty" yaml:"answer_template,omitempty"` // extract

	UseCodes       bool `json:"useCodes,omitempty" bson:"useCodes,omitempty" yaml:"use_codes,omitempty"`
	ExcludeComment bool `json:"excludeComment,omitempty" bson:"excludeComment,omitempty" yaml:"exclude_comment,omitempty"`
	Permissive     bool `json:"permissive,omitempty" bson:"permissive,omitempty" yaml:"permissive,omitempty"`

	// Overrides for the type's default templates
	QuestionPresentation  string `json:"questionPresentation,omitempty" bson:"questionPresentation,omitempty" yaml:"question_presentation,omitempty"`
	AnsweringInstructions string `json:"answeringInstructions,omitempty" bson:"answeringInstructions,omitempty" yaml:"answering_instructions,omitempty"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames cannot be question names because they are template context roots
var reservedNames = map[string]bool{
	"scenario": true,
	"agent":    true,
	"loop":     true,
	"true":     true,
	"false":    true,
	"none":     true,
	"True":     true,
	"False":    true,
	"None":     true,
}

// ValidateName reports whether name can be used as a question name
func ValidateName(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("question name %q is not a valid identifier", name)
	}
	if reservedNames[name] {
		return fmt.Errorf("question name %q is reserved", name)
	}
	return nil
}

// IncludeComment reports whether the answer carries a free-text comment line
func (q *Question) IncludeComment() bool {
	return !q.ExcludeComment
}
