package model

// DefaultAgentInstruction is used when an agent with traits has no instruction of its own
const DefaultAgentInstruction = "You are answering questions as if you were a human. Do not break character."

// Agent is a simulated respondent
type Agent struct {
	Name        string            `json:"name" bson:"name" yaml:"name"`
	Instruction string            `json:"instruction,omitempty" bson:"instruction,omitempty" yaml:"instruction,omitempty"`
	Traits      map[string]any    `json:"traits,omitempty" bson:"traits,omitempty" yaml:"traits,omitempty"`
	Codebook    map[string]string `json:"codebook,omitempty" bson:"codebook,omitempty" yaml:"codebook,omitempty"` // trait -> human label

	// TraitsPresentationTemplate renders traits into prose. Empty means the default persona.
	TraitsPresentationTemplate string `json:"traitsPresentationTemplate,omitempty" bson:"traitsPresentationTemplate,omitempty" yaml:"traits_presentation_template,omitempty"`
}

// HasTraits reports whether the agent has any persona at all
func (a *Agent) HasTraits() bool {
	return a != nil && len(a.Traits) > 0
}

// InstructionText returns the agent's instruction or the default one
func (a *Agent) InstructionText() string {
	if a.Instruction != "" {
		return a.Instruction
	}
	return DefaultAgentInstruction
}
