// Package validate checks raw model replies against a question's answer
// schema, repairing an invalid reply at most once.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"agentsurvey/internal/errs"
	"agentsurvey/internal/fingerprint"
	"agentsurvey/internal/model"
	"agentsurvey/internal/question"

	"github.com/kaptinlin/jsonschema"
)

// Hooks short-circuit validation in tests
type Hooks struct {
	// ForceException fails every reply with this explanation
	ForceException string
	// ForceAnswer accepts every reply with this answer
	ForceAnswer any
}

// ValidationError is the terminal failure of a reply
type ValidationError struct {
	Raw         string
	Schema      map[string]any
	Explanation string
	Cause       error
}

func (e *ValidationError) Error() string {
	return "invalid model reply: " + e.Explanation
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// AsValidationError extracts the ValidationError from err's chain
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Outcome is a validated answer
type Outcome struct {
	Answer          any    `json:"answer"`
	Comment         string `json:"comment"`
	GeneratedTokens string `json:"generatedTokens"`
	Repaired        bool   `json:"repaired"`
}

// Validator validates replies to one question
type Validator struct {
	question    *model.Question
	typ         *question.Type
	constraints question.Constraints
	schema      map[string]any
	compiled    *jsonschema.Schema
	schemaID    string
	hooks       Hooks
}

// New builds the reply schema for q from its resolved constraints
func New(q *model.Question, typ *question.Type, c question.Constraints, hooks Hooks) (*Validator, error) {
	schema := ReplySchema(typ.Schema(c), c.IncludeComment)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errs.Wrap(fmt.Errorf("marshal schema for %s: %w", q.Name, err), errs.CategoryInternal, "schema_build", "", false)
	}
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(data)
	if err != nil {
		return nil, errs.Wrap(fmt.Errorf("compile schema for %s: %w", q.Name, err), errs.CategoryInternal, "schema_build", "", false)
	}
	id, err := fingerprint.Digest(schema)
	if err != nil {
		return nil, err
	}

	return &Validator{
		question:    q,
		typ:         typ,
		constraints: c,
		schema:      schema,
		compiled:    compiled,
		schemaID:    id,
		hooks:       hooks,
	}, nil
}

// ReplySchema wraps an answer schema into the schema of a parsed reply
func ReplySchema(answer map[string]any, includeComment bool) map[string]any {
	props := map[string]any{
		"answer":           answer,
		"generated_tokens": map[string]any{"type": "string"},
	}
	if includeComment {
		props["comment"] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []any{"answer"},
	}
}

// Schema is the reply schema
func (v *Validator) Schema() map[string]any {
	return v.schema
}

// AnswerSchema is the schema of the answer field alone
func (v *Validator) AnswerSchema() map[string]any {
	props, _ := v.schema["properties"].(map[string]any)
	s, _ := props["answer"].(map[string]any)
	return s
}

// SchemaID identifies the schema in cache fingerprints
func (v *Validator) SchemaID() string {
	return v.schemaID
}

// Validate turns a raw reply into an answer. Structural failures get one
// type-specific repair attempt; if that fails too a *ValidationError is returned.
func (v *Validator) Validate(raw string) (*Outcome, error) {
	if v.hooks.ForceException != "" {
		return nil, v.fail(raw, v.hooks.ForceException, nil)
	}
	if v.hooks.ForceAnswer != nil {
		return &Outcome{Answer: v.hooks.ForceAnswer, GeneratedTokens: raw}, nil
	}

	reply := ParseReply(raw, v.typ, v.constraints)
	out, firstErr := v.accept(reply)
	if firstErr == nil {
		return out, nil
	}

	if v.typ.Repair == nil {
		return nil, v.fail(raw, v.explain(reply.Answer, firstErr), firstErr)
	}
	candidate, ok := v.typ.Repair(reply.AnswerLine, raw, v.constraints)
	if !ok {
		return nil, v.fail(raw, v.explain(reply.Answer, firstErr)+"; repair found nothing usable", firstErr)
	}

	repaired := reply
	repaired.Answer = candidate
	out, repairErr := v.accept(repaired)
	if repairErr != nil {
		explanation := v.explain(reply.Answer, firstErr) + "; after repair: " + v.explain(candidate, repairErr)
		return nil, v.fail(raw, explanation, repairErr)
	}
	out.Repaired = true
	return out, nil
}

func (v *Validator) accept(reply Reply) (*Outcome, error) {
	data, err := json.Marshal(reply.object())
	if err != nil {
		return nil, fmt.Errorf("answer is not serialisable: %w", err)
	}
	result := v.compiled.ValidateJSON(data)
	if !result.IsValid() {
		reasons := make([]string, 0, len(result.Errors))
		for field, e := range result.Errors {
			reasons = append(reasons, fmt.Sprintf("%v: %v", field, e))
		}
		sort.Strings(reasons)
		return nil, errors.New(strings.Join(reasons, "; "))
	}

	if v.typ.Check != nil {
		if err := v.typ.Check(reply.Answer, v.constraints); err != nil {
			return nil, err
		}
	}

	answer := reply.Answer
	if v.typ.PostProcess != nil {
		if answer, err = v.typ.PostProcess(reply.Answer, v.constraints); err != nil {
			return nil, err
		}
	}
	return &Outcome{
		Answer:          answer,
		Comment:         reply.Comment,
		GeneratedTokens: reply.GeneratedTokens,
	}, nil
}

func (v *Validator) explain(answer any, cause error) string {
	expected, _ := json.Marshal(v.AnswerSchema())
	got, err := json.Marshal(answer)
	if err != nil {
		got = []byte(fmt.Sprint(answer))
	}
	return fmt.Sprintf("expected an answer matching %s, got %s (%v)", expected, got, cause)
}

func (v *Validator) fail(raw, explanation string, cause error) error {
	ve := &ValidationError{
		Raw:         raw,
		Schema:      v.schema,
		Explanation: explanation,
		Cause:       cause,
	}
	return errs.Wrap(ve, errs.CategoryValidation, "invalid_answer", "the reply could not be read as a valid "+string(v.question.Type)+" answer", false)
}
