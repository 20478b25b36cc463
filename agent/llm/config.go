package llm

import (
	"fmt"
	"strings"

	"github.com/mechanigo/chatbot/agent/contract"
)

type Config struct {
	Model              string  `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	GuardrailModel     string  `envconfig:"GUARDRAIL_MODEL" split_words:"true"`
	LookupModel        string  `envconfig:"LOOKUP_MODEL" split_words:"true"`
	MaxCompletionToken int     `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float64 `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contract.ErrValidation)
	}
	return nil
}

// GuardrailModelName falls back to the main model when no dedicated
// guardrail model is configured.
func (c Config) GuardrailModelName() string {
	if v := strings.TrimSpace(c.GuardrailModel); v != "" {
		return v
	}
	return strings.TrimSpace(c.Model)
}

func (c Config) LookupModelName() string {
	if v := strings.TrimSpace(c.LookupModel); v != "" {
		return v
	}
	return strings.TrimSpace(c.Model)
}
