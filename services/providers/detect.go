package providers

import "strings"

// Canonical provider names. Detection can name providers the proxy has no
// adapter for; those still label metrics and traces.
const (
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderBedrock     = "bedrock"
	ProviderVertexAI    = "vertex_ai"
	ProviderCohere      = "cohere"
	ProviderHuggingFace = "huggingface"
	ProviderAzure       = "azure"
	ProviderUnknown     = "unknown"
)

// detectionRule maps model-name substrings to a provider name.
type detectionRule struct {
	provider string
	keywords []string
}

// detectionRules are evaluated in declaration order; the first keyword hit
// wins, so a keyword must not appear under a later rule it is meant to
// shadow.
var detectionRules = []detectionRule{
	{ProviderOpenAI, []string{"gpt", "text-davinci", "text-curie"}},
	{ProviderAnthropic, []string{"claude"}},
	{ProviderBedrock, []string{"bedrock", "amazon"}},
	{ProviderVertexAI, []string{"vertex", "gemini", "palm"}},
	{ProviderCohere, []string{"cohere"}},
	{ProviderHuggingFace, []string{"huggingface", "hf:"}},
	{ProviderAzure, []string{"azure"}},
}

// Detect resolves a model name to its provider name using case-insensitive
// substring rules. Unrecognized names return ProviderUnknown; Detect never
// fails.
func Detect(model string) string {
	name := strings.ToLower(model)
	for _, rule := range detectionRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(name, keyword) {
				return rule.provider
			}
		}
	}
	return ProviderUnknown
}
