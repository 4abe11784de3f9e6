package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exampleArgs struct {
	Query      string `json:"query" description:"Search query"`
	MaxResults *int   `json:"max_results,omitempty" description:"Result cap"`
	Topic      string `json:"topic,omitempty" enum:"general,news,finance"`
	Verbose    bool   `json:"verbose,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(exampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	maxResults, ok := props["max_results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", maxResults["type"])

	topic, ok := props["topic"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"general", "news", "finance"}, topic["enum"])

	// Only non-pointer, non-omitempty fields are required.
	assert.Equal(t, []string{"query"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(exampleArgs{})

	t.Run("all valid", func(t *testing.T) {
		err := ValidateParameters(map[string]any{
			"query":       "golang",
			"max_results": float64(3),
			"verbose":     true,
		}, schema)
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"verbose": true}, schema)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "query", vErr.Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateParameters(map[string]any{"query": 5}, schema)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "query", vErr.Field)
	})

	t.Run("required list as any slice", func(t *testing.T) {
		loose := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required": []any{"name"},
		}

		err := ValidateParameters(map[string]any{}, loose)
		assert.Error(t, err)

		err = ValidateParameters(map[string]any{"name": "ok"}, loose)
		assert.NoError(t, err)
	})
}
