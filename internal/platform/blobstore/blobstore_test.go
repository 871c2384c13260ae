package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDir_ListSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	names, err := NewDir(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"a.json", "b.jsonl", "notes.txt"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d]: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestDir_ListMissingDirectory(t *testing.T) {
	names, err := NewDir(filepath.Join(t.TempDir(), "absent")).List(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty listing, got %v", names)
	}
}

func TestDir_Open(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "export.jsonl"), []byte("line"), 0644)

	rc, err := NewDir(dir).Open(context.Background(), "export.jsonl")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "line" {
		t.Errorf("unexpected content %q", b)
	}
}

func TestDir_OpenNotFound(t *testing.T) {
	d := NewDir(t.TempDir())
	for _, name := range []string{"missing.json", "../etc/passwd", ""} {
		if _, err := d.Open(context.Background(), name); !errors.Is(err, ErrBlobNotFound) {
			t.Errorf("Open(%q): expected ErrBlobNotFound, got %v", name, err)
		}
	}
}

func TestNewBucket_NormalizesPrefix(t *testing.T) {
	b, err := NewBucket(BucketConfig{
		Endpoint:  "localhost:9000",
		Bucket:    "exports",
		Prefix:    "/fhir",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	if err != nil {
		t.Fatalf("NewBucket() error: %v", err)
	}
	if b.prefix != "fhir/" {
		t.Errorf("expected prefix fhir/, got %q", b.prefix)
	}
	if b.String() != "s3://exports/fhir/" {
		t.Errorf("unexpected String() %s", b.String())
	}
}
