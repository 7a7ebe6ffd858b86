package main

import (
	"bytes"
	"strings"
	"testing"

	icmd "blikterminal/internal/client/cmd"
)

func TestVersionCommand(t *testing.T) {
	root := icmd.NewRootCmd("1.2.3", "2026-10-15")
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "blikterm 1.2.3") {
		t.Fatalf("unexpected version output: %q", buf.String())
	}
}
