package model

import (
	"fmt"
	"time"
)

// Instruction is survey-level preamble text shown before a question and every question after it
type Instruction struct {
	Name   string `json:"name" bson:"name" yaml:"name"`
	Text   string `json:"text" bson:"text" yaml:"text"`
	Before string `json:"before" bson:"before" yaml:"before"` // question name
}

// MemoryPlan maps a focal question to the prior questions injected into its prompt
type MemoryPlan map[string][]string

// Survey is a persistent, ordered set of questions
type Survey struct {
	ID           string        `json:"id" bson:"_id,omitempty" yaml:"id,omitempty"`
	OwnerID      string        `json:"ownerId" bson:"ownerId" yaml:"-"`
	Title        string        `json:"title" bson:"title" yaml:"title"`
	Questions    []Question    `json:"questions" bson:"questions" yaml:"questions"`
	MemoryPlan   MemoryPlan    `json:"memoryPlan,omitempty" bson:"memoryPlan,omitempty" yaml:"memory_plan,omitempty"`
	Instructions []Instruction `json:"instructions,omitempty" bson:"instructions,omitempty" yaml:"instructions,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt" yaml:"-"`
	UpdatedAt    time.Time     `json:"updatedAt" bson:"updatedAt" yaml:"-"`
}

// Question returns the question with the given name
func (s *Survey) Question(name string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].Name == name {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// InstructionsFor returns the preamble instructions applying to a question, in survey order
func (s *Survey) InstructionsFor(name string) []Instruction {
	position := make(map[string]int, len(s.Questions))
	for i, q := range s.Questions {
		position[q.Name] = i
	}
	target, ok := position[name]
	if !ok {
		return nil
	}

	var out []Instruction
	for _, inst := range s.Instructions {
		at, ok := position[inst.Before]
		if ok && at <= target {
			out = append(out, inst)
		}
	}
	return out
}

// Validate checks names and memory plan references
func (s *Survey) Validate() error {
	seen := make(map[string]int, len(s.Questions))
	for i, q := range s.Questions {
		if err := ValidateName(q.Name); err != nil {
			return err
		}
		if _, dup := seen[q.Name]; dup {
			return fmt.Errorf("duplicate question name %q", q.Name)
		}
		if q.Type == "" {
			return fmt.Errorf("question %q has no type", q.Name)
		}
		seen[q.Name] = i
	}

	for focal, priors := range s.MemoryPlan {
		at, ok := seen[focal]
		if !ok {
			return fmt.Errorf("memory plan references unknown question %q", focal)
		}
		for _, p := range priors {
			pi, ok := seen[p]
			if !ok {
				return fmt.Errorf("memory plan for %q references unknown question %q", focal, p)
			}
			if pi >= at {
				return fmt.Errorf("memory plan for %q references %q, which is not asked earlier", focal, p)
			}
		}
	}

	for _, inst := range s.Instructions {
		if _, ok := seen[inst.Before]; !ok {
			return fmt.Errorf("instruction %q precedes unknown question %q", inst.Name, inst.Before)
		}
	}
	return nil
}
