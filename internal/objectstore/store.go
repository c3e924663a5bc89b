// Package objectstore implements durable, content-addressed storage for
// signed plugin binaries: one {digest}.plugin + {digest}.meta pair per
// accepted upload, per spec.md §4.3.
package objectstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/memflow/memflow-registry/internal/apperror"
	"github.com/memflow/memflow-registry/internal/catalog"
	"github.com/memflow/memflow-registry/internal/descriptor"
	"github.com/memflow/memflow-registry/internal/inspector"
	"github.com/memflow/memflow-registry/internal/sigverify"
)

// UploadResult reports what an upload actually did, since "the bytes already
// exist" is not an error from the caller's point of view.
type UploadResult int

const (
	Added UploadResult = iota
	AlreadyExists
)

// Store persists plugin binaries and their sidecar metadata under root, and
// keeps an in-memory Catalog in sync with what is on disk.
type Store struct {
	root     string
	verifier *sigverify.Verifier // nil disables signature checking
	catalog  *catalog.Catalog
}

// New opens root, enumerates every *.meta sidecar and rehydrates catalog
// from them. verifier may be nil, in which case upload skips signature
// checking entirely (cmd/registry passes nil when MEMFLOW_PUBLIC_KEY_FILE
// is unset). A malformed sidecar fails startup outright — an operator
// should not have corrupt state silently dropped, per spec.md §4.3.
func New(root string, verifier *sigverify.Verifier) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperror.IO("create object store root", err)
	}

	s := &Store{
		root:     root,
		verifier: verifier,
		catalog:  catalog.New(),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperror.IO("read object store root", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta") {
			continue
		}
		digest := strings.TrimSuffix(entry.Name(), ".meta")
		meta, err := s.readMetadata(digest)
		if err != nil {
			return nil, apperror.Parse("rehydrate sidecar %s: %v", entry.Name(), err)
		}
		s.catalog.InsertAll(meta, meta.Digest, meta.Signature)
	}

	return s, nil
}

// Catalog returns the store's in-memory index, shared with the gateway's
// query handlers.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Store) pluginPath(digest string) string { return filepath.Join(s.root, digest+".plugin") }
func (s *Store) metaPath(digest string) string    { return filepath.Join(s.root, digest+".meta") }
func (s *Store) lockPath(digest string) string    { return filepath.Join(s.root, digest+".lock") }

// Upload verifies, parses and persists a plugin binary. The steps run in the
// order spec.md §4.3 mandates: signature, then descriptor parse, then digest
// existence check, then plugin bytes, then sidecar, then catalog insertion.
//
// Writes sharing a digest are serialized with an advisory flock on a
// {digest}.lock file, closing the TOCTOU window a bare existence check would
// leave between two concurrent uploads of identical bytes (spec.md §9.2).
func (s *Store) Upload(bytes []byte, signatureHex string) (UploadResult, error) {
	if s.verifier != nil {
		if err := s.verifier.IsValid(bytes, signatureHex); err != nil {
			return 0, err
		}
	}

	descriptors, err := inspector.ParseDescriptors(bytes)
	if err != nil {
		return 0, err
	}
	if len(descriptors) == 0 {
		return 0, apperror.Parse("binary exports no MEMFLOW_ plugin descriptors")
	}

	digest := sha256Hex(bytes)

	unlock, err := s.lockDigest(digest)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if _, err := os.Stat(s.pluginPath(digest)); err == nil {
		return AlreadyExists, nil
	}

	if err := os.WriteFile(s.pluginPath(digest), bytes, 0o644); err != nil {
		return 0, apperror.IO("write plugin file", err)
	}

	meta := descriptor.Metadata{
		Digest:      digest,
		Signature:   signatureHex,
		CreatedAt:   time.Now().UTC(),
		Descriptors: descriptors,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, apperror.IO("encode sidecar metadata", err)
	}
	if err := os.WriteFile(s.metaPath(digest), metaBytes, 0o644); err != nil {
		return 0, apperror.IO("write sidecar metadata", err)
	}

	s.catalog.InsertAll(meta, digest, signatureHex)
	return Added, nil
}

// lockDigest acquires an exclusive advisory lock on a per-digest lock file
// and returns a function that releases it. The lock file itself is never
// removed — deleting it would reopen the same race it closes.
func (s *Store) lockDigest(digest string) (func(), error) {
	f, err := os.OpenFile(s.lockPath(digest), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperror.IO("open digest lock file", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, apperror.IO("acquire digest lock", err)
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// Download opens the raw plugin bytes for digest as a stream. The caller is
// responsible for closing it.
func (s *Store) Download(digest string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.pluginPath(digest))
	if err != nil {
		return nil, 0, apperror.NotFound("plugin with digest %q not found", digest)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, apperror.IO("stat plugin file", err)
	}
	return f, info.Size(), nil
}

// Metadata reads and decodes the sidecar for digest.
func (s *Store) Metadata(digest string) (descriptor.Metadata, error) {
	return s.readMetadata(digest)
}

func (s *Store) readMetadata(digest string) (descriptor.Metadata, error) {
	data, err := os.ReadFile(s.metaPath(digest))
	if err != nil {
		return descriptor.Metadata{}, apperror.NotFound("plugin with digest %q not found", digest)
	}
	var meta descriptor.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return descriptor.Metadata{}, apperror.Parse("decode sidecar metadata: %v", err)
	}
	return meta, nil
}

// Delete removes every catalog variant for digest and both files backing it.
// The catalog is updated before the files are unlinked, so a concurrent
// download racing the unlink may still briefly succeed — an accepted,
// documented race (spec.md §5).
func (s *Store) Delete(digest string) error {
	if _, err := os.Stat(s.pluginPath(digest)); err != nil {
		return apperror.NotFound("plugin with digest %q not found", digest)
	}

	s.catalog.DeleteByDigest(digest)

	if err := os.Remove(s.pluginPath(digest)); err != nil {
		return apperror.IO("remove plugin file", err)
	}
	if err := os.Remove(s.metaPath(digest)); err != nil && !os.IsNotExist(err) {
		return apperror.IO("remove sidecar metadata", err)
	}
	return nil
}

// Health reports whether the store root is readable, used as the gateway's
// liveness probe.
func (s *Store) Health() error {
	if _, err := os.ReadDir(s.root); err != nil {
		return apperror.IO("read object store root", err)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
