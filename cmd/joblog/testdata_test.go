package main

import (
	"bytes"
	"context"
	"testing"

	"pkt.systems/pslog"
)

const failingJob = `{"event":"job_started","timestamp":100}
{"event":"cmd_started","timestamp":100,"directive":"make build"}
{"event":"cmd_output","timestamp":101,"output":"compiling\n\u001b[32mok\u001b[0m\n"}
{"event":"cmd_finished","timestamp":103,"directive":"make build","exit_code":0,"started_at":100,"finished_at":103}
{"event":"cmd_started","timestamp":103,"directive":"make test"}
{"event":"cmd_output","timestamp":104,"output":"FAIL\n"}
{"event":"cmd_finished","timestamp":105,"directive":"make test","exit_code":1,"started_at":103,"finished_at":105}
{"event":"job_finished","timestamp":105,"result":"failed"}
`

// testContext isolates the config and state dirs under a temp HOME and
// captures log output.
func testContext(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel, VerboseFields: true})
	return pslog.ContextWithLogger(context.Background(), logger), &buf
}
