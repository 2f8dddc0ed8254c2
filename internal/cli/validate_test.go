package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchemaDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestValidateCommand_ValidSchemas(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{
		"requirements.cue": `
table: requirements: {
	name: "Requirements"
	property: Title: "text"
	property: Priority: { kind: "single_select", options: ["low", "high"] }
}
`,
	})

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 table(s) valid")
	assert.Contains(t, out, "requirements")
}

func TestValidateCommand_InvalidSchemaFailsWithCode1(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{
		"bad.cue": `
table: broken: {
	property: Title: "geo"
}
`,
	})

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Validation failed")
}

func TestValidateCommand_MissingDirFailsWithCode2(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_JSONOutput(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{
		"requirements.cue": `
table: requirements: {
	property: Title: "text"
}
`,
	})

	out, err := execute(t, "--format", "json", "validate", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}
