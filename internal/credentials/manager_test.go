package credentials

import (
	"os"
	"testing"
)

func TestAcquireWritesOwnerOnlyArtifacts(t *testing.T) {
	manager := NewManager(t.TempDir(), false)

	set, err := manager.Acquire("session-1", "CERT", "KEY", "CA")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer manager.Release(set)

	for path, want := range map[string]string{
		set.CertPath: "CERT",
		set.KeyPath:  "KEY",
		set.CAPath:   "CA",
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("artifact %s missing: %v", path, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("artifact %s has mode %v, want 0600", path, info.Mode().Perm())
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read %s: %v", path, err)
		}
		if string(content) != want {
			t.Errorf("artifact %s content %q, want %q", path, content, want)
		}
	}
}

func TestReleaseRemovesEverythingAndIsIdempotent(t *testing.T) {
	manager := NewManager(t.TempDir(), false)

	set, err := manager.Acquire("session-2", "CERT", "KEY", "CA")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	manager.Release(set)
	for _, path := range []string{set.CertPath, set.KeyPath, set.CAPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact %s still present after release", path)
		}
	}

	// Releasing again, or with partially missing artifacts, must not panic
	// or report anything to the caller.
	manager.Release(set)
	manager.Release(nil)
}

func TestConcurrentSessionsDoNotCollide(t *testing.T) {
	manager := NewManager(t.TempDir(), false)

	a, err := manager.Acquire("session-a", "CERT-A", "KEY-A", "CA-A")
	if err != nil {
		t.Fatalf("acquire a failed: %v", err)
	}
	b, err := manager.Acquire("session-b", "CERT-B", "KEY-B", "CA-B")
	if err != nil {
		t.Fatalf("acquire b failed: %v", err)
	}

	if a.CertPath == b.CertPath {
		t.Fatal("two sessions share a certificate path")
	}

	manager.Release(a)
	if content, err := os.ReadFile(b.CertPath); err != nil || string(content) != "CERT-B" {
		t.Errorf("releasing session a disturbed session b: %q %v", content, err)
	}
	manager.Release(b)
}
