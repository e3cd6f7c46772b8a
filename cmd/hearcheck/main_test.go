package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/hearcheck/internal/config"
)

func TestLocalOutput(t *testing.T) {
	factory, err := localOutput(config.Audio{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, factory)

	factory, err = localOutput(config.Audio{Backend: "oto"})
	require.NoError(t, err)
	assert.NotNil(t, factory)

	_, err = localOutput(config.Audio{Backend: "websocket"})
	assert.ErrorContains(t, err, "cannot play locally")
}

func TestCommandTree(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"results", "delete"})
	require.NoError(t, err)
	assert.Equal(t, "delete <index>", cmd.Use)

	cmd, _, err = rootCmd.Find([]string{"test"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("audio"))
}

func TestResultsDelete_RejectsBadIndex(t *testing.T) {
	err := resultsDeleteCmd.RunE(resultsDeleteCmd, []string{"first"})
	assert.ErrorContains(t, err, "invalid index")
}
