package transport

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"testing"
)

func TestBuildScriptArchive_RoundTrips(t *testing.T) {
	files := map[string][]byte{
		"run.sh":   []byte("#!/bin/sh\necho hi\n"),
		"lib/a.sh": []byte("echo lib"),
	}

	archive, err := BuildScriptArchive(files)
	if err != nil {
		t.Fatalf("BuildScriptArchive: %v", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	tr := tar.NewReader(gz)

	got := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading tar entry %s: %v", hdr.Name, err)
		}
		got[hdr.Name] = content
	}

	if len(got) != len(files) {
		t.Fatalf("archive has %d entries, want %d", len(got), len(files))
	}
	for name, want := range files {
		if string(got[name]) != string(want) {
			t.Fatalf("entry %s = %q, want %q", name, got[name], want)
		}
	}
}

func TestBuildScriptArchive_Empty(t *testing.T) {
	archive, err := BuildScriptArchive(nil)
	if err != nil {
		t.Fatalf("BuildScriptArchive(nil): %v", err)
	}
	if len(archive) == 0 {
		t.Fatalf("even an empty archive should produce valid gzip framing bytes")
	}
}
