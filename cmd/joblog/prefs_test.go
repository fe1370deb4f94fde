package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/joblog/schema"
)

func runPrefs(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newPrefsCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestPrefsDefaults(t *testing.T) {
	ctx, _ := testContext(t)
	out, err := runPrefs(t, ctx, "get")
	require.NoError(t, err)
	assert.Equal(t, "dark=false\nwrap=true\nsticky=true\ntimestamps=false\nlive=true\n", out)
}

func TestPrefsSetKeepsCoupling(t *testing.T) {
	ctx, _ := testContext(t)
	_, err := runPrefs(t, ctx, "set", "timestamps", "true")
	require.NoError(t, err)

	out, err := runPrefs(t, ctx, "set", "wrap", "false")
	require.NoError(t, err)
	assert.Contains(t, out, "wrap=false\n")
	assert.Contains(t, out, "timestamps=false\n")

	out, err = runPrefs(t, ctx, "get", "timestamps")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestPrefsProfilesAreSeparate(t *testing.T) {
	ctx, _ := testContext(t)
	_, err := runPrefs(t, ctx, "set", "dark", "true", "--profile", "night")
	require.NoError(t, err)

	out, err := runPrefs(t, ctx, "get", "dark", "--profile", "night")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
	out, err = runPrefs(t, ctx, "get", "dark")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)
}

func TestPrefsReset(t *testing.T) {
	ctx, _ := testContext(t)
	_, err := runPrefs(t, ctx, "set", "live", "false")
	require.NoError(t, err)
	out, err := runPrefs(t, ctx, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "live=true\n")
}

func TestPrefsRejectsSessionKeysAndBadValues(t *testing.T) {
	ctx, _ := testContext(t)
	_, err := runPrefs(t, ctx, "set", "fetching", "true")
	require.True(t, errors.Is(err, schema.ErrInvalidDisplayKey), "err = %v", err)

	_, err = runPrefs(t, ctx, "set", "colour", "true")
	require.True(t, errors.Is(err, schema.ErrInvalidDisplayKey), "err = %v", err)

	_, err = runPrefs(t, ctx, "set", "dark", "maybe")
	require.True(t, errors.Is(err, schema.ErrInvalidDisplayValue), "err = %v", err)
}
