package config

import (
	"os"
	"strconv"
)

// Providers the model client can be built on
const (
	ProviderGemini = "gemini"
	ProviderStatic = "static"
)

// ModelPricing is the price of a model in dollars per million tokens
type ModelPricing struct {
	InputPerMillion  float64 `json:"inputPerMillion"`
	OutputPerMillion float64 `json:"outputPerMillion"`
}

// AIConfig holds all model-call configuration
type AIConfig struct {
	Provider    string       `json:"provider"`
	APIKey      string       `json:"-"` // Never serialize
	Model       string       `json:"model"`
	Temperature float32      `json:"temperature"`
	TimeoutMS   int          `json:"timeoutMs"`
	Pricing     ModelPricing `json:"pricing"`

	// StructuredOutput sends the answer schema with each request
	StructuredOutput bool `json:"structuredOutput"`

	// StaticReply is what the static provider answers with
	StaticReply string `json:"staticReply,omitempty"`
}

// DefaultAIConfig returns the AI configuration from the environment
func DefaultAIConfig() *AIConfig {
	c := &AIConfig{
		Provider:    getEnvOrDefault("AI_PROVIDER", ProviderGemini),
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		Temperature: float32(getEnvFloat("AI_TEMPERATURE", 0.5)),
		TimeoutMS:   getEnvInt("AI_TIMEOUT_MS", 30000),
		Pricing: ModelPricing{
			InputPerMillion:  getEnvFloat("AI_PRICE_INPUT_PER_MILLION", 0.10),
			OutputPerMillion: getEnvFloat("AI_PRICE_OUTPUT_PER_MILLION", 0.40),
		},
		StructuredOutput: getEnvBool("AI_STRUCTURED_OUTPUT", false),
		StaticReply:      os.Getenv("AI_STATIC_REPLY"),
	}
	if c.Provider == ProviderGemini && c.APIKey == "" {
		c.Provider = ProviderStatic
	}
	return c
}

// IsEnabled returns true if a real model API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.Provider == ProviderGemini && c.APIKey != ""
}

// Parameters are the call settings that change a model's reply, used in cache keys
func (c *AIConfig) Parameters() map[string]any {
	return map[string]any{
		"temperature":       c.Temperature,
		"structured_output": c.StructuredOutput,
	}
}

// Cost prices a call's token usage
func (p ModelPricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPerMillion/1e6 + float64(outputTokens)*p.OutputPerMillion/1e6
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
