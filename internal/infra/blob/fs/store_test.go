package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"testrig/internal/blob/core"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]bool{
		"certs/a.json":   true,
		"a/./b.csv":      true,
		"":               false,
		"/etc/passwd":    false,
		"../escape":      false,
		"certs/../../x":  false,
		"certs/a.meta":   false,
		"dots..are.fine": true,
	}
	for key, ok := range cases {
		_, err := sanitizeKey(key)
		if (err == nil) != ok {
			t.Errorf("sanitizeKey(%q) err=%v, want ok=%v", key, err, ok)
		}
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	s, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver")
	}
	info, err := s.Put(ctx, "certs/s1/schedule.csv", strings.NewReader("circuit,r1r2\n1,0.22\n"), core.PutOptions{ContentType: "text/csv", Metadata: map[string]string{"session": "s1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 20 || len(info.ETag) != 64 || !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "certs", "s1", "schedule.csv.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if _, err := s.Put(ctx, "certs/s1/schedule.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	head, err := s.Head(ctx, "certs/s1/schedule.csv")
	if err != nil || head.ContentType != "text/csv" || head.Metadata["session"] != "s1" {
		t.Fatalf("head: %+v %v", head, err)
	}
	_, rc, err := s.Get(ctx, "certs/s1/schedule.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "circuit,r1r2\n1,0.22\n" {
		t.Fatalf("unexpected body %q", b)
	}

	if _, err := s.Put(ctx, "certs/s2/schedule.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put s2: %v", err)
	}
	list, err := s.List(ctx, "certs/s1/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v %v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "certs/s1/schedule.csv" {
		t.Fatalf("unexpected listing %+v", all)
	}

	url, err := s.PresignURL(ctx, "certs/s2/schedule.json", core.SignedURLOptions{})
	if err != nil || !strings.HasSuffix(url, "certs/s2/schedule.json") {
		t.Fatalf("presign: %q %v", url, err)
	}

	removed, err := s.Delete(ctx, "certs/s1/schedule.csv")
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	removed, err = s.Delete(ctx, "certs/s1/schedule.csv")
	if err != nil || removed {
		t.Fatalf("second delete: %v %v", removed, err)
	}
	if _, _, err := s.Get(ctx, "certs/s1/schedule.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
