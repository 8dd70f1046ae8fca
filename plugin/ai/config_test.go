package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/tastevec/internal/profile"
)

func TestNewConfigFromProfile(t *testing.T) {
	tests := []struct {
		name     string
		profile  *profile.Profile
		expected EmbeddingConfig
	}{
		{
			name: "siliconflow",
			profile: &profile.Profile{
				AIEnabled:             true,
				AIEmbeddingProvider:   "siliconflow",
				AIEmbeddingModel:      "BAAI/bge-m3",
				AIEmbeddingDimensions: 1024,
				AISiliconFlowAPIKey:   "sf-key",
				AISiliconFlowBaseURL:  "https://api.siliconflow.cn/v1",
			},
			expected: EmbeddingConfig{
				Provider:   "siliconflow",
				Model:      "BAAI/bge-m3",
				Dimensions: 1024,
				APIKey:     "sf-key",
				BaseURL:    "https://api.siliconflow.cn/v1",
			},
		},
		{
			name: "openai",
			profile: &profile.Profile{
				AIEnabled:             true,
				AIEmbeddingProvider:   "openai",
				AIEmbeddingModel:      "text-embedding-3-small",
				AIEmbeddingDimensions: 1536,
				AIOpenAIAPIKey:        "openai-key",
				AIOpenAIBaseURL:       "https://api.openai.com/v1",
			},
			expected: EmbeddingConfig{
				Provider:   "openai",
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				APIKey:     "openai-key",
				BaseURL:    "https://api.openai.com/v1",
			},
		},
		{
			name: "ollama with default dimensions",
			profile: &profile.Profile{
				AIEnabled:           true,
				AIEmbeddingProvider: "ollama",
				AIEmbeddingModel:    "nomic-embed-text",
				AIOllamaBaseURL:     "http://localhost:11434/",
			},
			expected: EmbeddingConfig{
				Provider:   "ollama",
				Model:      "nomic-embed-text",
				Dimensions: 1024,
				BaseURL:    "http://localhost:11434/v1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfigFromProfile(tt.profile)
			require.True(t, cfg.Enabled)
			assert.Equal(t, tt.expected, cfg.Embedding)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromProfile_Disabled(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{AIEnabled: false, AIEmbeddingProvider: "openai"})
	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.Embedding.Provider)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing provider",
			cfg:     Config{Enabled: true, Embedding: EmbeddingConfig{Model: "m"}},
			wantErr: true,
		},
		{
			name:    "missing api key",
			cfg:     Config{Enabled: true, Embedding: EmbeddingConfig{Provider: "openai", Model: "m"}},
			wantErr: true,
		},
		{
			name:    "ollama needs no api key",
			cfg:     Config{Enabled: true, Embedding: EmbeddingConfig{Provider: "ollama", Model: "m"}},
			wantErr: false,
		},
		{
			name:    "missing model",
			cfg:     Config{Enabled: true, Embedding: EmbeddingConfig{Provider: "openai", APIKey: "k"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
