package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Store reads and writes the parameter file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a store backed by the JSON file at path.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{path: path, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the parameter file path.
func (s *Store) Path() string {
	return s.path
}

// LoadAll reads the whole parameter file. A missing or blank file is an
// empty document.
func (s *Store) LoadAll() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug().Str("path", s.path).Msg("parameter file not found, using empty store")
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse parameter file %s: %w", s.path, err)
	}
	return doc, nil
}

// Entries returns the stored entries of class.
func (s *Store) Entries(class string) (Entries, error) {
	doc, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	return doc.Entries(class), nil
}

// Load returns the parameter set stored for class and id.
func (s *Store) Load(class, id string) (Params, error) {
	doc, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	p, ok := doc.Get(class, id)
	if !ok {
		return nil, fmt.Errorf("%w: could not find a stage with id %s for %s", ErrStageNotFound, id, class)
	}
	return p, nil
}

// Save replaces the entry of class and id with p and writes the whole file.
func (s *Store) Save(class, id string, p Params) error {
	if p == nil {
		return fmt.Errorf("%w: value has to be a mapping but found nil instead", ErrInvalidParams)
	}

	doc, err := s.LoadAll()
	if err != nil {
		return err
	}

	if _, ok := doc.Get(class, id); ok {
		s.logger.Debug().Str("class", class).Str("id", id).Msg("replacing stored parameters")
	} else {
		s.logger.Debug().Str("class", class).Str("id", id).Msg("storing new parameters")
	}
	doc.Set(class, id, p)

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode parameter file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create parameter directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write parameter file: %w", err)
	}
	return nil
}

// Resolve loads the entries of class and resolves the id for requested.
func (s *Store) Resolve(class string, requested Params, multiUse bool) (string, error) {
	if !multiUse {
		return ResolveID(nil, requested, false), nil
	}
	entries, err := s.Entries(class)
	if err != nil {
		return "", err
	}
	id := ResolveID(entries, requested, true)
	if _, ok := entries.Get(id); ok {
		s.logger.Debug().Str("class", class).Str("id", id).Msg("found stage with the given parameters")
	}
	return id, nil
}
