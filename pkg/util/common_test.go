package util

import (
	"bytes"
	"testing"
)

func TestPrintBuildInfo(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintBuildInfo(&buf, "v1.2.0", "", "abc123"); err != nil {
		t.Fatalf("PrintBuildInfo: %v", err)
	}
	want := "Build version: v1.2.0\nBuild date: N/A\nBuild commit: abc123\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}
