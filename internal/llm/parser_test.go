package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain json untouched", input: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  {\"a\":1}\n", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMarkdownWrapper(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare object", input: `{"groups":[[0,1]]}`, want: `{"groups":[[0,1]]}`},
		{name: "prose around object", input: `Here you go: {"index":2} hope that helps`, want: `{"index":2}`},
		{name: "array", input: `[[0,1],[2]]`, want: `[[0,1],[2]]`},
		{name: "fenced", input: "```json\n{\"index\":2}\n```", want: `{"index":2}`},
		{name: "braces inside strings", input: `{"note":"a } inside"}`, want: `{"note":"a } inside"}`},
		{name: "no json", input: "I cannot help with that.", wantErr: true},
		{name: "unterminated", input: `{"index":2`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
