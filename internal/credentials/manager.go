package credentials

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"payment-terminal/internal/interfaces"
)

// Set is one materialized certificate/key/CA triple. A set is exclusively
// owned by the workflow invocation that acquired it and must be released on
// every exit path of that invocation.
type Set struct {
	SessionID string
	CertPath  string
	KeyPath   string
	CAPath    string
	CreatedAt time.Time

	dir string
}

// Paths returns the storage handles for the outbound TLS client.
func (s *Set) Paths() interfaces.CredentialPaths {
	return interfaces.CredentialPaths{
		CertPath: s.CertPath,
		KeyPath:  s.KeyPath,
		CAPath:   s.CAPath,
	}
}

// Manager writes ephemeral credential sets to private temporary storage.
type Manager struct {
	baseDir string
	verbose bool
}

// NewManager creates a credential manager. An empty baseDir means the system
// temp dir.
func NewManager(baseDir string, verbose bool) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, verbose: verbose}
}

// Acquire writes the three artifacts under a session-scoped directory with
// owner-only permissions. Concurrent sessions never collide on paths because
// the directory name embeds the session id.
func (m *Manager) Acquire(sessionID, certPEM, keyPEM, caPEM string) (*Set, error) {
	dir := filepath.Join(m.baseDir, "mtls-"+sessionID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential dir: %v", err)
	}

	set := &Set{
		SessionID: sessionID,
		CertPath:  filepath.Join(dir, "client.crt"),
		KeyPath:   filepath.Join(dir, "client.key"),
		CAPath:    filepath.Join(dir, "ca.crt"),
		CreatedAt: time.Now(),
		dir:       dir,
	}

	artifacts := []struct {
		path    string
		content string
	}{
		{set.CertPath, certPEM},
		{set.KeyPath, keyPEM},
		{set.CAPath, caPEM},
	}
	for _, a := range artifacts {
		if err := os.WriteFile(a.path, []byte(a.content), 0o600); err != nil {
			m.Release(set)
			return nil, fmt.Errorf("failed to write %s: %v", filepath.Base(a.path), err)
		}
	}

	if m.verbose {
		log.Printf("[CREDENTIALS] Materialized session %s under %s", sessionID, dir)
	}

	return set, nil
}

// Release removes all artifacts of the set. It is idempotent and best-effort
// per artifact: a failure removing one never blocks removal of the others,
// and an already-gone file is not an error.
func (m *Manager) Release(set *Set) {
	if set == nil {
		return
	}

	for _, path := range []string{set.CertPath, set.KeyPath, set.CAPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[CREDENTIALS] Failed to remove %s: %v", path, err)
		}
	}
	if err := os.Remove(set.dir); err != nil && !os.IsNotExist(err) {
		log.Printf("[CREDENTIALS] Failed to remove %s: %v", set.dir, err)
	}

	if m.verbose {
		log.Printf("[CREDENTIALS] Released session %s", set.SessionID)
	}
}
