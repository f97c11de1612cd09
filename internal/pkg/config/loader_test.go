package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "links.txt")
	assert.Equal(t, "links.txt", LoadEnvString("TEST_STRING", "default"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default", LoadEnvString("TEST_STRING", "default"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		wantValue    string
		wantFallback bool
		wantSet      bool
	}{
		{name: "valid", value: "example.com", wantValue: "example.com", wantSet: true},
		{name: "unset", value: "", wantValue: "default.org"},
		{name: "invalid", value: "https://example.com/", wantValue: "default.org", wantFallback: true, wantSet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_HOST", tt.value)
			result := LoadEnvWithFallback("TEST_HOST", "default.org", ValidateHostname)

			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			assert.Equal(t, tt.wantSet, result.Set)
			if tt.wantFallback {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "TEST_HOST")
				assert.Contains(t, result.Warnings[0], "falling back to default 'default.org'")
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		validator    func(time.Duration) error
		want         time.Duration
		wantFallback bool
	}{
		{name: "valid", value: "45s", validator: ValidatePositiveDuration, want: 45 * time.Second},
		{name: "compound", value: "1h30m", want: 90 * time.Minute},
		{name: "unset", value: "", want: 15 * time.Second},
		{name: "bad format", value: "fifteen", want: 15 * time.Second, wantFallback: true},
		{name: "missing unit", value: "30", want: 15 * time.Second, wantFallback: true},
		{name: "negative", value: "-5s", validator: ValidatePositiveDuration, want: 15 * time.Second, wantFallback: true},
		{name: "zero without validator", value: "0s", want: 0},
		{
			name:  "out of range",
			value: "3h",
			validator: func(d time.Duration) error {
				return ValidateDuration(d, time.Second, time.Hour)
			},
			want:         15 * time.Second,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			result := LoadEnvDuration("TEST_DURATION", 15*time.Second, tt.validator)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.Len(t, result.Warnings, 1)
			}
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	between := func(n int) error { return ValidateIntRange(n, 1, 32) }

	tests := []struct {
		name         string
		value        string
		want         int
		wantFallback bool
	}{
		{name: "valid", value: "8", want: 8},
		{name: "padded", value: " 8 ", want: 8},
		{name: "unset", value: "", want: 4},
		{name: "decimal", value: "2.5", want: 4, wantFallback: true},
		{name: "text", value: "many", want: 4, wantFallback: true},
		{name: "below minimum", value: "0", want: 4, wantFallback: true},
		{name: "above maximum", value: "64", want: 4, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			result := LoadEnvInt("TEST_INT", 4, between)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvFloat(t *testing.T) {
	positive := func(f float64) error { return ValidateFloatRange(f, 0.1, 100) }

	t.Setenv("TEST_FLOAT", "2.5")
	result := LoadEnvFloat("TEST_FLOAT", 1, positive)
	assert.InDelta(t, 2.5, result.Value, 1e-9)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_FLOAT", "0")
	result = LoadEnvFloat("TEST_FLOAT", 1, positive)
	assert.InDelta(t, 1.0, result.Value, 1e-9)
	assert.True(t, result.FallbackApplied)

	t.Setenv("TEST_FLOAT", "fast")
	result = LoadEnvFloat("TEST_FLOAT", 1, positive)
	assert.True(t, result.FallbackApplied)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "invalid number format")
}

func TestLoadEnvBool(t *testing.T) {
	for _, v := range []string{"1", "t", "true", "TRUE", "True"} {
		t.Setenv("TEST_BOOL", v)
		result := LoadEnvBool("TEST_BOOL", false)
		assert.True(t, result.Value, v)
		assert.False(t, result.FallbackApplied, v)
	}
	for _, v := range []string{"0", "f", "false", "FALSE"} {
		t.Setenv("TEST_BOOL", v)
		result := LoadEnvBool("TEST_BOOL", true)
		assert.False(t, result.Value, v)
	}

	t.Setenv("TEST_BOOL", "yes")
	result := LoadEnvBool("TEST_BOOL", true)
	assert.True(t, result.Value)
	assert.True(t, result.FallbackApplied)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "expected 'true' or 'false'")
}

func TestLoadEnvList(t *testing.T) {
	def := []string{"nitter.net"}

	t.Setenv("TEST_LIST", "a.com, b.org,,  ")
	result := LoadEnvList("TEST_LIST", def)
	assert.Equal(t, []string{"a.com", "b.org"}, result.Value)
	assert.True(t, result.Set)

	t.Setenv("TEST_LIST", "")
	result = LoadEnvList("TEST_LIST", def)
	assert.Equal(t, def, result.Value)
	assert.False(t, result.Set)

	t.Setenv("TEST_LIST", ",")
	result = LoadEnvList("TEST_LIST", def)
	assert.Empty(t, result.Value)
	assert.True(t, result.Set)
}
