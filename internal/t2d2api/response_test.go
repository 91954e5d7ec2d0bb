package t2d2api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected any
	}{
		{
			name:     "envelope",
			body:     `{"success":true,"message":"created","data":{"id":5}}`,
			expected: map[string]any{"success": true, "message": "created", "data": map[string]any{"id": 5.0}},
		},
		{
			name:     "no envelope",
			body:     `[{"id":3}]`,
			expected: []any{map[string]any{"id": 3.0}},
		},
		{
			name:     "empty body",
			body:     "  ",
			expected: nil,
		},
		{
			name:     "object without success flag",
			body:     `{"data":[1,2]}`,
			expected: map[string]any{"data": []any{1.0, 2.0}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out any
			require.NoError(t, Decode([]byte(tc.body), &out))
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestDecodeFailure(t *testing.T) {
	var out any
	err := Decode([]byte(`{"success":false,"message":"Project not found"}`), &out)
	var failure *FailureError
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "Project not found", failure.Message)
	assert.Contains(t, err.Error(), "Project not found")

	err = Decode([]byte(`{"success":false}`), &out)
	assert.EqualError(t, err, "t2d2api: request reported success=false")
}

func TestDecodeRejectsMistypedEnvelope(t *testing.T) {
	var out any
	err := Decode([]byte(`{"success":"false","message":"nope","data":{}}`), &out)
	require.Error(t, err)
	var failure *FailureError
	assert.False(t, errors.As(err, &failure))
	assert.NotErrorIs(t, err, ErrNotJSON)
	assert.Contains(t, err.Error(), "decode envelope")
}

func TestParseNotJSON(t *testing.T) {
	_, err := Parse([]byte("<html>ok</html>"))
	assert.ErrorIs(t, err, ErrNotJSON)

	var out any
	assert.ErrorIs(t, Decode([]byte("queued"), &out), ErrNotJSON)
}

func TestEnvelopeFailed(t *testing.T) {
	env, err := Parse([]byte(`{"success":true}`))
	require.NoError(t, err)
	assert.False(t, env.Failed())

	env, err = Parse([]byte(`{"message":"no flag"}`))
	require.NoError(t, err)
	assert.False(t, env.Failed())

	env, err = Parse([]byte(`{"success":false}`))
	require.NoError(t, err)
	assert.True(t, env.Failed())
}
