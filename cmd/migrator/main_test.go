package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records which command was dispatched.
type fakeRunner struct {
	called string
	err    error
}

func (f *fakeRunner) Up() error      { f.called = "up"; return f.err }
func (f *fakeRunner) Down() error    { f.called = "down"; return f.err }
func (f *fakeRunner) Status() error  { f.called = "status"; return f.err }
func (f *fakeRunner) Version() error { f.called = "version"; return f.err }
func (f *fakeRunner) Drop() error    { f.called = "drop"; return f.err }
func (f *fakeRunner) Close() error   { return nil }

func TestExecuteCommand_Dispatch(t *testing.T) {
	for _, command := range []string{"up", "down", "status", "version"} {
		t.Run(command, func(t *testing.T) {
			runner := &fakeRunner{}

			require.NoError(t, executeCommand(command, runner, false))
			assert.Equal(t, command, runner.called)
		})
	}
}

func TestExecuteCommand_DropRequiresForce(t *testing.T) {
	runner := &fakeRunner{}

	err := executeCommand("drop", runner, false)
	require.ErrorIs(t, err, ErrDropRequiresForce)
	assert.Empty(t, runner.called, "drop must not run without --force")

	require.NoError(t, executeCommand("drop", runner, true))
	assert.Equal(t, "drop", runner.called)
}

func TestExecuteCommand_Unknown(t *testing.T) {
	err := executeCommand("sideways", &fakeRunner{}, false)
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "sideways")
}

func TestExecuteCommand_PropagatesRunnerError(t *testing.T) {
	boom := errors.New("boom")

	err := executeCommand("up", &fakeRunner{err: boom}, false)
	assert.ErrorIs(t, err, boom)
}
