package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeString(t *testing.T) {
	s, ok := SafeString("hello")
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = SafeString(42)
	assert.False(t, ok)
	_, ok = SafeString(nil)
	assert.False(t, ok)

	assert.Equal(t, "fallback", SafeStringDefault(nil, "fallback"))
}

func TestSafeFloat64Widening(t *testing.T) {
	for _, value := range []any{float64(7), float32(7), int(7), int64(7), int32(7)} {
		f, ok := SafeFloat64(value)
		assert.True(t, ok, "%T should widen", value)
		assert.Equal(t, 7.0, f)
	}

	_, ok := SafeFloat64("7")
	assert.False(t, ok)
	assert.Equal(t, 1.5, SafeFloat64Default(nil, 1.5))
}

func TestSafeIntTruncation(t *testing.T) {
	i, ok := SafeInt(float64(3.9))
	assert.True(t, ok)
	assert.Equal(t, 3, i)

	_, ok = SafeInt("3")
	assert.False(t, ok)
	assert.Equal(t, 300, SafeIntDefault(nil, 300))
}

func TestSafeMapSlice(t *testing.T) {
	direct := []map[string]any{{"a": 1}}
	got, ok := SafeMapSlice(direct)
	assert.True(t, ok)
	assert.Equal(t, direct, got)

	// JSON decoding produces []any of maps.
	decoded := []any{map[string]any{"a": 1}, map[string]any{"b": 2}}
	got, ok = SafeMapSlice(decoded)
	assert.True(t, ok)
	assert.Len(t, got, 2)

	// One non-map element fails the whole assertion.
	_, ok = SafeMapSlice([]any{map[string]any{"a": 1}, "oops"})
	assert.False(t, ok)

	_, ok = SafeMapSlice(nil)
	assert.False(t, ok)
}
