// Package records keeps the local gallery of mint outcomes as a single
// JSON file, newest first.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanta-studio/vanta/internal/log"
)

// Record is one confirmed mint outcome.
type Record struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TokenID     string    `json:"token_id"`
	TxHash      string    `json:"tx_hash"`
	Contract    string    `json:"contract"`
	MetadataURI string    `json:"metadata_uri"`
	ImageFile   string    `json:"image_file"`
	Network     string    `json:"network"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists mint records to one JSON file. Writes are serialized;
// a corrupt or missing file reads as empty rather than failing.
type Store struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path, log: log.Records}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Append adds a record at the head of the file. The whole file is
// rewritten atomically; an unreadable existing file is treated as empty
// and overwritten rather than blocking the new record.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load()
	all := make([]Record, 0, len(existing)+1)
	all = append(all, rec)
	all = append(all, existing...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	s.log.Info().Str("token_id", rec.TokenID).Str("network", rec.Network).Msg("record saved")
	return nil
}

// LoadAll returns every record, newest first. Never errors; a missing
// or corrupt file reads as an empty gallery.
func (s *Store) LoadAll() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("records unreadable, treating as empty")
		}
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		s.log.Warn().Err(err).Msg("records corrupt, treating as empty")
		return nil
	}
	return recs
}
