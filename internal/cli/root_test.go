package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"validate", "test", "serve", "snapshot"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_GlobalFlagDefaults(t *testing.T) {
	cmd := NewRootCommand()

	format, err := cmd.PersistentFlags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "text", format)

	verbose, err := cmd.PersistentFlags().GetBool("verbose")
	require.NoError(t, err)
	assert.False(t, verbose)
}

func TestRootCommand_SubcommandsSilenceUsage(t *testing.T) {
	cmd := NewRootCommand()
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		assert.True(t, sub.SilenceUsage, "%s should not print usage on runtime errors", sub.Name())
	}
}
