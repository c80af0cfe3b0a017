// Package ledger persists the last known content hash of every image whose
// reference has been versioned, so unchanged images keep their version token
// across runs.
//
// The ledger is a flat JSON object stored at <root>/.image-hashes.json mapping
// absolute file paths to 8 hex character hashes. Every change is written
// through to disk before GenerateHash reports it.
//
// Writers coordinate through an advisory lock file kept in the system temp
// directory, named after the ledger path, so the asset tree only ever gains
// the ledger itself.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/safeio"
	"github.com/gofrs/flock"
)

// FileName is the ledger file name inside the run root.
const FileName = ".image-hashes.json"

// HashLength is the number of hex characters kept from the digest.
const HashLength = 8

// ErrNotFound is returned by GenerateHash when the file does not exist.
var ErrNotFound = errors.New("file not found")

// Result is the outcome of hashing one file.
type Result struct {
	Hash     string
	Previous string
	// Changed is true when the hash differs from the stored one, including
	// the first time a path is hashed.
	Changed bool
}

// Ledger is safe for concurrent use. Persistence is serialized in-process by
// a mutex and across processes by an advisory lock file (see LockPath).
type Ledger struct {
	path   string
	digest Digest
	log    *logger.Logger

	mu          sync.Mutex
	hashes      map[string]string
	initialized bool
	lock        *flock.Flock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDigest selects the digest algorithm.
func WithDigest(d Digest) Option {
	return func(l *Ledger) {
		if d != "" {
			l.digest = d
		}
	}
}

// WithLogger attaches a logger for self-healing and lookup messages.
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// New returns a ledger stored in root. Nothing is read until Initialize.
func New(root string, opts ...Option) *Ledger {
	path := filepath.Join(root, FileName)
	l := &Ledger{
		path:   path,
		digest: DigestMD5,
		log:    logger.Discard(),
		hashes: make(map[string]string),
		lock:   flock.New(LockPath(path)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LockPath returns the advisory lock file used for the ledger at path. It
// lives outside the asset tree so deployed output is not littered with it.
func LockPath(ledgerPath string) string {
	sum := sha256.Sum256([]byte(normalize(ledgerPath)))
	return filepath.Join(os.TempDir(), "assetneat-"+hex.EncodeToString(sum[:8])+".lock")
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Digest returns the configured digest algorithm.
func (l *Ledger) Digest() Digest { return l.digest }

// Initialize loads the ledger from disk. A missing, unreadable or corrupt
// ledger is replaced by an empty one which is persisted immediately.
// Calling Initialize again is a no-op.
func (l *Ledger) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initLocked()
}

func (l *Ledger) initLocked() error {
	if l.initialized {
		return nil
	}

	loaded, err := l.load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.log.Warn("hash ledger unreadable, starting empty", logger.String("ledger", l.path), logger.Err(err))
		}
		l.hashes = make(map[string]string)
		l.initialized = true
		return l.saveLocked()
	}

	l.hashes = loaded
	l.initialized = true
	l.log.Debug("hash ledger loaded", logger.String("ledger", l.path), logger.Int("entries", len(loaded)))
	return nil
}

func (l *Ledger) load() (map[string]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	if raw == nil {
		return nil, errors.New("parse ledger: not a JSON object")
	}

	hashes := make(map[string]string, len(raw))
	for key, value := range raw {
		var hash string
		if err := json.Unmarshal(value, &hash); err != nil {
			continue
		}
		hashes[key] = hash
	}
	return hashes, nil
}

// saveLocked writes the ledger atomically. Callers hold l.mu.
func (l *Ledger) saveLocked() error {
	data, err := json.MarshalIndent(l.hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	if err := safeio.WriteFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// PreviousHash returns the stored hash for path.
func (l *Ledger) PreviousHash(path string) (string, bool) {
	key := normalize(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.hashes[key]
	return h, ok
}

// GenerateHash hashes the file at path and records the result. A missing or
// unreadable file returns a zero Result and an error; the ledger is left
// untouched in that case.
func (l *Ledger) GenerateHash(path string) (Result, error) {
	key := normalize(path)

	data, err := os.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Result{}, fmt.Errorf("read %s: %w", key, err)
	}
	hash := HashBytes(l.digest, data)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.initLocked(); err != nil {
		return Result{}, err
	}

	previous, existed := l.hashes[key]
	if existed && previous == hash {
		return Result{Hash: hash, Previous: previous}, nil
	}

	l.hashes[key] = hash
	if err := l.saveLocked(); err != nil {
		if existed {
			l.hashes[key] = previous
		} else {
			delete(l.hashes, key)
		}
		return Result{}, err
	}
	return Result{Hash: hash, Previous: previous, Changed: true}, nil
}

// Entries returns a copy of the ledger contents.
func (l *Ledger) Entries() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.hashes))
	for k, v := range l.hashes {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hashes)
}

// Drift describes a ledger entry that no longer matches the file on disk.
type Drift struct {
	Path    string `json:"path"`
	Stored  string `json:"stored"`
	Current string `json:"current,omitempty"`
	Missing bool   `json:"missing,omitempty"`
}

// Verify re-hashes every entry without modifying the ledger and returns the
// entries whose file is missing or whose content changed, sorted by path.
func (l *Ledger) Verify() ([]Drift, error) {
	if err := l.Initialize(); err != nil {
		return nil, err
	}
	entries := l.Entries()

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var drift []Drift
	for _, p := range paths {
		stored := entries[p]
		data, err := os.ReadFile(p)
		if err != nil {
			drift = append(drift, Drift{Path: p, Stored: stored, Missing: true})
			continue
		}
		if current := HashBytes(l.digest, data); current != stored {
			drift = append(drift, Drift{Path: p, Stored: stored, Current: current})
		}
	}
	return drift, nil
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
