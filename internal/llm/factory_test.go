package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "anthropic", cfg: Config{Provider: "anthropic", APIKey: "key"}},
		{name: "openai", cfg: Config{Provider: "OpenAI", APIKey: "key"}},
		{name: "unknown provider", cfg: Config{Provider: "palm", APIKey: "key"}, wantErr: true},
		{name: "anthropic without key", cfg: Config{Provider: "anthropic"}, wantErr: true},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestCapabilities(t *testing.T) {
	anthropic, err := NewClient(Config{Provider: "anthropic", APIKey: "key"})
	require.NoError(t, err)
	assert.True(t, anthropic.Capabilities().WebSearch)
	assert.False(t, anthropic.Capabilities().StructuredOutput)

	openai, err := NewClient(Config{Provider: "openai", APIKey: "key"})
	require.NoError(t, err)
	assert.False(t, openai.Capabilities().WebSearch)
	assert.True(t, openai.Capabilities().StructuredOutput)
}
