package event

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPayload_Primitives(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "null"},
		{"true", true, "true"},
		{"int", 42, "42"},
		{"negative int64", int64(-7), "-7"},
		{"uint8", uint8(255), "255"},
		{"whole float", 4.0, "4"},
		{"fraction", 1.5, "1.5"},
		{"string", "hi", `"hi"`},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"event type", Type("count"), `"count"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalPayload(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalPayload_SortsKeys(t *testing.T) {
	got, err := MarshalPayload(map[string]any{
		"zeta":  1,
		"alpha": []any{"x", 2, nil},
		"mid":   map[string]any{"b": true, "a": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":["x",2,null],"mid":{"a":false,"b":true},"zeta":1}`, string(got))
}

func TestMarshalPayload_NFC(t *testing.T) {
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"

	a, err := MarshalPayload(decomposed)
	require.NoError(t, err)
	b, err := MarshalPayload(composed)
	require.NoError(t, err)

	assert.Equal(t, b, a)
}

func TestMarshalPayload_Struct(t *testing.T) {
	type reading struct {
		Room  string  `json:"room"`
		Value float64 `json:"value"`
	}

	got, err := MarshalPayload(reading{Room: "kitchen", Value: 21.5})
	require.NoError(t, err)
	assert.Equal(t, `{"room":"kitchen","value":21.5}`, string(got))
}

func TestMarshalPayload_RejectsNonFinite(t *testing.T) {
	_, err := MarshalPayload(math.NaN())
	assert.Error(t, err)

	_, err = MarshalPayload([]any{math.Inf(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestMarshalPayload_Unsupported(t *testing.T) {
	_, err := MarshalPayload(make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported payload type")
}
