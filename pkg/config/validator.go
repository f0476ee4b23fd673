package config

import (
	"github.com/go-playground/validator/v10"
)

// SupportedLLMProviders lists the completion service backends known to the adapter factory.
var SupportedLLMProviders = []string{"openai", "openai-native", "anthropic", "google", "ollama", "groq", "mock"}

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("llm_provider", validateLLMProvider)
}

func validateLLMProvider(fl validator.FieldLevel) bool {
	provider := fl.Field().String()
	for _, p := range SupportedLLMProviders {
		if p == provider {
			return true
		}
	}
	return false
}
