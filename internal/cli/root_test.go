package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diamond/internal/ir"
)

// sqliteOpts returns root options bound to a fresh SQLite database.
func sqliteOpts(t *testing.T) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:   "text",
		Backend:  "sqlite",
		Database: filepath.Join(t.TempDir(), "diamond.db"),
	}
}

// execute runs a single command built from opts and returns stdout and stderr.
func execute(t *testing.T, opts *RootOptions, build func(*RootOptions) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := build(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// deployBuiltins routes the built-in facets in the database of opts.
func deployBuiltins(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, _, err := execute(t, opts, NewCutCommand, "--builtin")
	require.NoError(t, err)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "diamond", cmd.Use)
	assert.Contains(t, cmd.Long, "diamond.storage.zk.trader")
	assert.Equal(t, ir.RouterVersion, cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"region", "selector", "validate", "cut", "set", "remove", "routes", "loupe", "history", "call", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "backend", "db"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "", flag.DefValue, "%s defaults come from config", name)
	}
}

func TestCallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	callCmd, _, err := cmd.Find([]string{"call"})
	require.NoError(t, err)

	for _, name := range []string{"args", "caller", "value", "credential"} {
		assert.NotNil(t, callCmd.Flags().Lookup(name), name)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"region", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_EndToEnd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "diamond.bolt")
	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		cmd := NewRootCommand()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append([]string{"--backend", "bolt", "--db", db}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	_, err := run("cut", "--builtin")
	require.NoError(t, err)

	out, err := run("call", "balance()")
	require.NoError(t, err)
	assert.Equal(t, "{\"balance\":10000}\n", out)

	_, err = run("remove", "balance()")
	require.NoError(t, err)

	out, err = run("call", "balance()")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E302]")
}
