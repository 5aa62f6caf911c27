package providers

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{
			name:  "gpt model",
			model: "gpt-4",
			want:  ProviderOpenAI,
		},
		{
			name:  "gpt turbo variant",
			model: "gpt-3.5-turbo-0125",
			want:  ProviderOpenAI,
		},
		{
			name:  "legacy davinci model",
			model: "text-davinci-003",
			want:  ProviderOpenAI,
		},
		{
			name:  "claude model",
			model: "claude-3-opus-20240229",
			want:  ProviderAnthropic,
		},
		{
			name:  "bedrock titan",
			model: "amazon.titan-text-express-v1",
			want:  ProviderBedrock,
		},
		{
			name:  "gemini model",
			model: "gemini-1.5-pro",
			want:  ProviderVertexAI,
		},
		{
			name:  "palm model",
			model: "palm-2-chat-bison",
			want:  ProviderVertexAI,
		},
		{
			name:  "cohere command",
			model: "cohere-command-r",
			want:  ProviderCohere,
		},
		{
			name:  "huggingface hub path",
			model: "huggingface/bigscience/bloom",
			want:  ProviderHuggingFace,
		},
		{
			name:  "hf prefix",
			model: "hf:mistralai/Mistral-7B",
			want:  ProviderHuggingFace,
		},
		{
			name:  "azure deployment",
			model: "azure-custom-deployment",
			want:  ProviderAzure,
		},
		{
			name:  "uppercase model",
			model: "GPT-4",
			want:  ProviderOpenAI,
		},
		{
			name:  "mixed case claude",
			model: "Claude-3-Haiku",
			want:  ProviderAnthropic,
		},
		{
			name:  "unrecognized model",
			model: "llama-3-70b",
			want:  ProviderUnknown,
		},
		{
			name:  "empty model",
			model: "",
			want:  ProviderUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.model); got != tt.want {
				t.Errorf("Detect(%q) = %s, want %s", tt.model, got, tt.want)
			}
		})
	}
}

func TestDetect_RuleOrder(t *testing.T) {
	// Earlier rules win when a name matches several keywords.
	tests := []struct {
		model string
		want  string
	}{
		{"azure-gpt4-deployment", ProviderOpenAI},
		{"bedrock-claude-v2", ProviderAnthropic},
		{"azure-claude-proxy", ProviderAnthropic},
	}

	for _, tt := range tests {
		if got := Detect(tt.model); got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.model, got, tt.want)
		}
	}
}
