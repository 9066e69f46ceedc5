// Package collection keeps the committed records of one document variant and
// writes them to a key-value medium as a single JSON array.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-scanner/internal/document"
)

var (
	// ErrPersistWrite wraps any failure to durably save the collection
	ErrPersistWrite = errors.New("saving collection failed")

	// ErrPersistDecode marks stored data that could not be read as the current shape
	ErrPersistDecode = errors.New("stored collection could not be decoded")
)

// IDGenerator generates unique IDs for committed records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random (version 4) UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// StorageKey names the slot for a variant's collection. The schema version is
// part of the key so data of an older shape is left alone, never misread.
func StorageKey(v document.Variant) string {
	return fmt.Sprintf("invoicescanner_%s_v%d", v, v.SchemaVersion())
}

// Store holds the committed collection, newest first
type Store struct {
	mu          sync.Mutex
	kv          KV
	variant     document.Variant
	key         string
	records     []document.Record
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewStore creates a new Store with random UUIDs and the wall clock
func NewStore(kv KV, variant document.Variant) *Store {
	return NewStoreWithDeps(kv, variant, &uuidGenerator{}, &defaultTimeSource{})
}

// NewStoreWithDeps creates a new Store with custom dependencies for testing
func NewStoreWithDeps(kv KV, variant document.Variant, idGen IDGenerator, timeSrc TimeSource) *Store {
	return &Store{
		kv:          kv,
		variant:     variant,
		key:         StorageKey(variant),
		records:     make([]document.Record, 0),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Variant returns the document shape this store holds
func (s *Store) Variant() document.Variant {
	return s.variant
}

// Key returns the storage key in use
func (s *Store) Key() string {
	return s.key
}

// Load reads the collection from the medium. Missing or unreadable data yields
// an empty collection; the cause is logged, never returned.
func (s *Store) Load() []document.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]document.Record, 0)
	s.logInertKeys()

	data, err := s.kv.Get(s.key)
	if errors.Is(err, ErrNotFound) {
		return s.snapshot()
	}
	if err != nil {
		slog.Error("Failed to read collection", "key", s.key, "error", err)
		return s.snapshot()
	}

	records, err := document.DecodeCollection(s.variant, data)
	if err != nil {
		slog.Error("Failed to load collection",
			"key", s.key,
			"size", len(data),
			"error", fmt.Errorf("%w: %w", ErrPersistDecode, err),
		)
		return s.snapshot()
	}

	s.records = records
	slog.Info("Collection loaded", "key", s.key, "records", len(records))
	return s.snapshot()
}

// logInertKeys mentions collections stored under other schema versions
func (s *Store) logInertKeys() {
	lister, ok := s.kv.(interface{ Keys() ([]string, error) })
	if !ok {
		return
	}
	keys, err := lister.Keys()
	if err != nil {
		return
	}
	prefix := fmt.Sprintf("invoicescanner_%s_v", s.variant)
	for _, k := range keys {
		if k != s.key && strings.HasPrefix(k, prefix) {
			slog.Warn("Ignoring collection stored under an older schema", "key", k, "current", s.key)
		}
	}
}

// Commit freezes a copy of the draft with a new id and timestamp, prepends it
// and saves the whole collection. On a failed save the collection is left as
// it was and the error wraps ErrPersistWrite. The draft itself is not modified.
func (s *Store) Commit(draft document.Record) (document.Record, error) {
	if draft.Variant() != s.variant {
		return nil, fmt.Errorf("cannot commit %s into a %s collection", draft.Variant(), s.variant)
	}
	if draft.Meta().Committed() {
		return nil, fmt.Errorf("record %s is already committed", draft.Meta().ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeSource.Now().UTC()
	if len(s.records) > 0 {
		if newest := s.records[0].Meta().ScannedAt; newest != nil && newest.After(now) {
			now = *newest
		}
	}

	rec := draft.Clone()
	rec.Meta().ID = s.idGenerator.Generate()
	rec.Meta().ScannedAt = &now

	updated := make([]document.Record, 0, len(s.records)+1)
	updated = append(updated, rec)
	updated = append(updated, s.records...)

	if err := s.persist(updated); err != nil {
		slog.Error("Failed to save collection", "key", s.key, "error", err)
		return nil, err
	}

	s.records = updated
	return rec.Clone(), nil
}

func (s *Store) persist(records []document.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: marshaling collection: %w", ErrPersistWrite, err)
	}
	if err := s.kv.Put(s.key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistWrite, err)
	}
	return nil
}

// Records returns copies of the committed records, newest first
func (s *Store) Records() []document.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() []document.Record {
	out := make([]document.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out
}

// Len returns the number of committed records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Clear removes the whole collection from memory and the medium
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(s.key); err != nil {
		return fmt.Errorf("%w: clearing collection: %w", ErrPersistWrite, err)
	}
	s.records = make([]document.Record, 0)
	return nil
}
