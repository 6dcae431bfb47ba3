package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{in: 7, want: 7, ok: true},
		{in: int64(64), want: 64, ok: true},
		{in: 2.9, want: 2, ok: true},
		{in: " 12 ", want: 12, ok: true},
		{in: "twelve"},
		{in: true},
		{in: nil},
	}
	for _, tt := range tests {
		got, ok := Int(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{in: 0.3, want: 0.3, ok: true},
		{in: float32(0.5), want: 0.5, ok: true},
		{in: int64(1), want: 1, ok: true},
		{in: 2, want: 2, ok: true},
		{in: "0.25", want: 0.25, ok: true},
		{in: "abc"},
		{in: []any{1.0}},
	}
	for _, tt := range tests {
		got, ok := Float(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%#v", tt.in)
	}
}

func TestBool(t *testing.T) {
	for _, in := range []any{true, "true", "1", "TRUE"} {
		got, ok := Bool(in)
		assert.True(t, ok, "%#v", in)
		assert.True(t, got, "%#v", in)
	}
	for _, in := range []any{false, "false", "0"} {
		got, ok := Bool(in)
		assert.True(t, ok, "%#v", in)
		assert.False(t, got, "%#v", in)
	}
	for _, in := range []any{"yes", 1, nil} {
		_, ok := Bool(in)
		assert.False(t, ok, "%#v", in)
	}
}

func TestStrings(t *testing.T) {
	got, ok := Strings([]any{"chunker", 5, "title_prefix"})
	assert.True(t, ok)
	assert.Equal(t, []string{"chunker", "title_prefix"}, got)

	got, ok = Strings("chunker, title_prefix,,")
	assert.True(t, ok)
	assert.Equal(t, []string{"chunker", "title_prefix"}, got)

	got, ok = Strings([]string{"a"})
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, got)

	_, ok = Strings(3)
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	got, ok := String("zstd")
	assert.True(t, ok)
	assert.Equal(t, "zstd", got)

	_, ok = String(int64(3))
	assert.False(t, ok)
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{in: "90s", want: 90 * time.Second, ok: true},
		{in: " 5m ", want: 5 * time.Minute, ok: true},
		{in: int64(30), want: 30 * time.Second, ok: true},
		{in: 2, want: 2 * time.Second, ok: true},
		{in: time.Hour, want: time.Hour, ok: true},
		{in: "soon"},
		{in: 1.5},
	}
	for _, tt := range tests {
		got, ok := Duration(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}
