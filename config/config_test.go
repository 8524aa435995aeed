package config

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	fs := flag.NewFlagSet("vns", flag.ContinueOnError)

	cfg, err := Parse(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeRun, cfg.Mode)
	assert.Equal(t, "main.vns", cfg.Entry)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10000, cfg.MaxSteps)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Empty(t, cfg.Choices)
}

func TestParseEnvThenFlags(t *testing.T) {
	t.Setenv("VNS_MODE", "serve")
	t.Setenv("VNS_PORT", "9000")
	t.Setenv("VNS_CHOICES", "1,0")

	fs := flag.NewFlagSet("vns", flag.ContinueOnError)
	cfg, err := Parse(fs, []string{"-port", "9100", "-chapter", "intro"})
	require.NoError(t, err)

	assert.Equal(t, ModeServe, cfg.Mode)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "intro", cfg.Chapter)
	assert.Equal(t, []int{1, 0}, cfg.Choices)
}

func TestParseChoicesFlag(t *testing.T) {
	fs := flag.NewFlagSet("vns", flag.ContinueOnError)
	cfg, err := Parse(fs, []string{"-choices", "2, 1,3"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3}, cfg.Choices)

	fs = flag.NewFlagSet("vns", flag.ContinueOnError)
	_, err = Parse(fs, []string{"-choices", "a"})
	assert.Error(t, err)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("VNS_PORT", "not-an-int")

	_, err := Parse(flag.NewFlagSet("vns", flag.ContinueOnError), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse env:"))
}

func TestValidate(t *testing.T) {
	_, err := Parse(flag.NewFlagSet("vns", flag.ContinueOnError), []string{"-mode", "dance"})
	assert.Error(t, err)

	_, err = Parse(flag.NewFlagSet("vns", flag.ContinueOnError), []string{"-parallel", "0"})
	assert.Error(t, err)
}
