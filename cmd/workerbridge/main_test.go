package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() {
		logLevel = "info"
		logFormat = "text"
	})

	logLevel, logFormat = "debug", "json"

	log, err := newLogger()
	require.NoError(t, err)
	require.NotNil(t, log)

	logLevel, logFormat = "loud", "text"

	_, err = newLogger()
	require.Error(t, err)

	logLevel, logFormat = "warn", "xml"

	_, err = newLogger()
	require.Error(t, err)
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make([]string, 0, 2)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	require.Contains(t, names, "relay")
	require.Contains(t, names, "mcp")
}
