package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "quizchat dev")
}

func TestServeRequiresAPIURL(t *testing.T) {
	t.Setenv("API_URL", "")
	rootCmd.SetArgs([]string{"--port", "0"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_URL is required")
}

func TestInvalidLogLevel(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "--log-level", "loud"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		flagLogLevel = ""
	})

	err := Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
