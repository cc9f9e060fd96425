// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// FakeEngine writes a shell script that stands in for ffmpeg. It records its
// arguments to ArgsFile, prints two progress markers on stderr and, when
// exitCode is zero, writes a small file at its last argument.
type FakeEngine struct {
	Bin      string
	ArgsFile string
}

func NewFakeEngine(t testing.TB, exitCode int) FakeEngine {
	t.Helper()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := fmt.Sprintf(`#!/bin/sh
printf '%%s\n' "$@" > %q
for last; do :; done
echo "Input #0, concat, from 'concat.txt':" >&2
echo "frame=   10 fps=0.0 q=0.0 size=0kB time=00:00:01.00 bitrate=0.0kbits/s speed=1x" >&2
printf 'frame=   20 fps=0.0 q=0.0 size=1kB time=00:00:02.00 bitrate=1.0kbits/s\r' >&2
echo "time=N/A" >&2
if [ %d -ne 0 ]; then
  echo "Conversion failed!" >&2
  exit %d
fi
printf 'compiled' > "$last"
exit 0
`, argsFile, exitCode, exitCode)

	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return FakeEngine{Bin: bin, ArgsFile: argsFile}
}

// Args returns the arguments recorded by the last invocation.
func (e FakeEngine) Args(t testing.TB) []string {
	t.Helper()

	data, err := os.ReadFile(e.ArgsFile)
	if err != nil {
		t.Fatalf("read engine args: %v", err)
	}
	var args []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			args = append(args, string(data[start:i]))
			start = i + 1
		}
	}
	return args
}

// WriteFile creates path (and its parents) with the given content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
