package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "recall", rootCmd.Use)
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	v := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, v)
	assert.Equal(t, "v", v.Shorthand)

	f := rootCmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, f)
	assert.Equal(t, "text", f.DefValue)
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"search", "index", "status", "remove", "snapshot", "document", "settings", "scheduler", "mcp", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestNeedsServices(t *testing.T) {
	assert.True(t, needsServices(searchCmd))
	assert.True(t, needsServices(snapshotStatsCmd))
	assert.False(t, needsServices(versionCmd))
}

func TestExecute_BootstrapsLazily(t *testing.T) {
	defer SetServices(nil)
	defer resetFlags(rootCmd)
	SetServices(nil)

	snap := &mockSnapshotService{stats: domain.IndexStats{Entries: 42}}
	calls, released := 0, 0
	boot := func(_ context.Context) (*Services, func(), error) {
		calls++
		return &Services{
			Snapshot: snap,
			Settings: &mockSettingsService{},
			Warnings: []string{"embedding provider not configured"},
		}, func() { released++ }, nil
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"snapshot", "stats"})
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background(), "1.2.3", boot)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, released)
	assert.Contains(t, buf.String(), "Warning: embedding provider not configured")
	assert.Contains(t, buf.String(), "Entries:    42")
	assert.Equal(t, "1.2.3", version)
	version = "dev"
}

func TestExecute_VersionSkipsBootstrap(t *testing.T) {
	defer SetServices(nil)
	SetServices(nil)

	called := false
	boot := func(_ context.Context) (*Services, func(), error) {
		called = true
		return &Services{}, nil, nil
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background(), "", boot)

	require.NoError(t, err)
	assert.False(t, called)
	assert.Contains(t, buf.String(), "recall version dev")
}

func TestExecute_BootstrapError(t *testing.T) {
	defer SetServices(nil)
	SetServices(nil)

	boot := func(_ context.Context) (*Services, func(), error) {
		return nil, nil, errors.New("open database: locked")
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"snapshot", "stats"})
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background(), "", boot)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialise services")
	assert.Contains(t, err.Error(), "locked")
}

func TestRootCmd_InvalidLogFormat(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("", "--log-format", "xml", "snapshot", "stats")

	require.Error(t, err)
}

func TestPersistSnapshot_ReportsFailure(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	testSvc.snapshot.err = errors.New("bucket missing")

	out, err := execute("", "remove", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: snapshot not saved: bucket missing")
	assert.Contains(t, out, "Removed 3 index entries for document 1.")
}
