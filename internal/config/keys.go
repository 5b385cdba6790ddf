package config

import "fmt"

// KeyStatus reports whether a credential is configured, with the value masked.
type KeyStatus struct {
	Name       string
	Configured bool
	Masked     string
}

// CheckKeys reports the configuration state of every credential the bot uses.
// Values are masked so output is safe to print.
func (c *Config) CheckKeys() []KeyStatus {
	return []KeyStatus{
		{Name: "telegram.token", Configured: c.Telegram.Token != "", Masked: maskKey(c.Telegram.Token)},
		{Name: "llm.groq_key", Configured: c.LLM.GroqKey != "", Masked: maskKey(c.LLM.GroqKey)},
		{Name: "llm.openai_key", Configured: c.LLM.OpenAIKey != "", Masked: maskKey(c.LLM.OpenAIKey)},
	}
}

// PrimaryLLMKey returns the API key for the configured primary provider.
func (c *Config) PrimaryLLMKey() (string, error) {
	switch c.LLM.Primary {
	case "groq":
		if c.LLM.GroqKey == "" {
			return "", fmt.Errorf("llm.primary is groq but llm.groq_key is not set")
		}
		return c.LLM.GroqKey, nil
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return "", fmt.Errorf("llm.primary is openai but llm.openai_key is not set")
		}
		return c.LLM.OpenAIKey, nil
	default:
		return "", fmt.Errorf("unknown llm.primary %q", c.LLM.Primary)
	}
}

// maskKey shows only the first and last 4 characters of a key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
