package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	require.Equal(t, "fallback", ParseString("NACEX_TEST_STR", "fallback"))

	t.Setenv("NACEX_TEST_STR", "set")
	require.Equal(t, "set", ParseString("NACEX_TEST_STR", "fallback"))

	t.Setenv("NACEX_TEST_STR", "")
	require.Equal(t, "fallback", ParseString("NACEX_TEST_STR", "fallback"), "empty counts as unset")
}

func TestParseInt(t *testing.T) {
	require.Equal(t, 7, ParseInt("NACEX_TEST_INT", 7))

	t.Setenv("NACEX_TEST_INT", "42")
	require.Equal(t, 42, ParseInt("NACEX_TEST_INT", 7))

	t.Setenv("NACEX_TEST_INT", "not-a-number")
	require.Equal(t, 7, ParseInt("NACEX_TEST_INT", 7))
}

func TestParseBool(t *testing.T) {
	require.False(t, ParseBool("NACEX_TEST_BOOL", false))

	t.Setenv("NACEX_TEST_BOOL", "true")
	require.True(t, ParseBool("NACEX_TEST_BOOL", false))

	t.Setenv("NACEX_TEST_BOOL", "yes")
	require.False(t, ParseBool("NACEX_TEST_BOOL", false), "invalid values keep the default")
}

func TestParseDuration(t *testing.T) {
	require.Equal(t, time.Minute, ParseDuration("NACEX_TEST_DUR", time.Minute))

	t.Setenv("NACEX_TEST_DUR", "30s")
	require.Equal(t, 30*time.Second, ParseDuration("NACEX_TEST_DUR", time.Minute))

	t.Setenv("NACEX_TEST_DUR", "30")
	require.Equal(t, time.Minute, ParseDuration("NACEX_TEST_DUR", time.Minute), "unitless values are invalid")
}

func TestParseFloat(t *testing.T) {
	t.Setenv("NACEX_TEST_FLOAT", "0.25")
	require.Equal(t, 0.25, ParseFloat("NACEX_TEST_FLOAT", 1.0))
}

func TestParseStringSlice(t *testing.T) {
	require.Equal(t, []string{"a"}, ParseStringSlice("NACEX_TEST_SLICE", []string{"a"}))

	t.Setenv("NACEX_TEST_SLICE", "10.0.0.0/8, 192.168.1.1 ,")
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, ParseStringSlice("NACEX_TEST_SLICE", nil))
}
