package runspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamNumberCoercion(t *testing.T) {
	params := map[string]any{
		"float":  1.5,
		"int":    3,
		"string": " 2.25 ",
		"bad":    "not-a-number",
		"bool":   true,
	}

	v, ok := ParamNumber(params, "float")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = ParamNumber(params, "int")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = ParamNumber(params, "string")
	assert.True(t, ok)
	assert.Equal(t, 2.25, v)

	_, ok = ParamNumber(params, "bad")
	assert.False(t, ok)
	_, ok = ParamNumber(params, "bool")
	assert.False(t, ok)
	_, ok = ParamNumber(params, "missing")
	assert.False(t, ok)
}

func TestParamString(t *testing.T) {
	params := map[string]any{"col": " ema_fast ", "num": 1}

	s, ok := ParamString(params, "col")
	assert.True(t, ok)
	assert.Equal(t, "ema_fast", s)

	_, ok = ParamString(params, "num")
	assert.False(t, ok)
}

func TestCoerceSpecJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		out, err := CoerceSpecJSON(`{"name":"x"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"x"}`, out)
	})

	t.Run("wrapped in spec", func(t *testing.T) {
		out, err := CoerceSpecJSON(`{"spec": {"name":"x"}}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"x"}`, out)
	})

	t.Run("rejects non-object", func(t *testing.T) {
		_, err := CoerceSpecJSON(`[1,2]`)
		require.Error(t, err)
		_, err = CoerceSpecJSON(``)
		require.Error(t, err)
		_, err = CoerceSpecJSON(`{broken`)
		require.Error(t, err)
	})
}
