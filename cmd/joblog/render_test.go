package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPlain(t *testing.T) {
	ctx, logs := testContext(t)
	var out bytes.Buffer
	err := runRender(ctx, renderOptions{jobID: "job-7", format: "plain", color: colorNever}, strings.NewReader(failingJob), &out)
	require.NoError(t, err)

	want := "[Passed in 00:03] make build\n" +
		"     1  compiling\n" +
		"     2  ok\n" +
		"[Failed in 00:02] make test\n" +
		"     3  FAIL\n"
	assert.Equal(t, want, out.String())
	assert.Contains(t, logs.String(), "job log rendered")
	assert.Contains(t, logs.String(), "decode_errors")
}

func TestRenderHTMLPageAndFragment(t *testing.T) {
	ctx, _ := testContext(t)
	var page bytes.Buffer
	require.NoError(t, runRender(ctx, renderOptions{jobID: "job-7", format: "html"}, strings.NewReader(failingJob), &page))
	assert.True(t, strings.HasPrefix(page.String(), "<!DOCTYPE html>"))
	assert.Contains(t, page.String(), `data-job="job-7"`)
	assert.Contains(t, page.String(), "make test")

	var fragment bytes.Buffer
	require.NoError(t, runRender(ctx, renderOptions{jobID: "job-7", format: "html", fragment: true}, strings.NewReader(failingJob), &fragment))
	assert.NotContains(t, fragment.String(), "<!DOCTYPE html>")
	assert.Contains(t, fragment.String(), `data-job="job-7"`)
}

func TestRenderSkipsUndecodableLines(t *testing.T) {
	ctx, logs := testContext(t)
	input := "not json\n" + failingJob
	var out bytes.Buffer
	require.NoError(t, runRender(ctx, renderOptions{jobID: "job-7", format: "plain"}, strings.NewReader(input), &out))
	assert.Contains(t, out.String(), "     3  FAIL\n")
	assert.Contains(t, logs.String(), "job log line skipped")
}

func TestRenderWritesOutFile(t *testing.T) {
	ctx, _ := testContext(t)
	path := filepath.Join(t.TempDir(), "job.txt")
	var out bytes.Buffer
	require.NoError(t, runRender(ctx, renderOptions{jobID: "job-7", format: "plain", out: path}, strings.NewReader(failingJob), &out))
	assert.Zero(t, out.Len())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Failed in 00:02] make test")
}

func TestRenderHonoursTimestampPreference(t *testing.T) {
	ctx, _ := testContext(t)
	var prefs bytes.Buffer
	cmd := newPrefsCmd()
	cmd.SetOut(&prefs)
	cmd.SetArgs([]string{"set", "timestamps", "true"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	var out bytes.Buffer
	require.NoError(t, runRender(ctx, renderOptions{jobID: "job-7", format: "plain"}, strings.NewReader(failingJob), &out))
	assert.Contains(t, out.String(), "     1  00:01  compiling\n")
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	ctx, _ := testContext(t)
	err := runRender(ctx, renderOptions{format: "pdf"}, strings.NewReader(failingJob), &bytes.Buffer{})
	require.Error(t, err)
}

func TestRenderRejectsUnknownTheme(t *testing.T) {
	ctx, _ := testContext(t)
	err := runRender(ctx, renderOptions{format: "ansi", theme: "nope"}, strings.NewReader(failingJob), &bytes.Buffer{})
	require.Error(t, err)
}
