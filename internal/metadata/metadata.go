// Package metadata persists the single JSON document that enriches stored
// images with product details. The document lives in the same storage
// backend as the images themselves, so local and cloud deployments share
// one code path.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pixelcrate/pixelcrate/internal/logging"
	"github.com/pixelcrate/pixelcrate/internal/storage"
)

// DocumentKey is the object name the metadata document is stored under.
const DocumentKey = "metadata.json"

var (
	corruptionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelcrate_metadata_corruption_total",
		Help: "Times the metadata document failed to parse and was replaced by an empty map.",
	})
	saveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixelcrate_metadata_save_failures_total",
		Help: "Times saving the metadata document failed and was swallowed.",
	})
)

// Record enriches one stored image. All product fields are optional.
type Record struct {
	SourceURL          string    `json:"sourceUrl,omitempty"`
	ProductName        string    `json:"productName,omitempty"`
	ProductDescription string    `json:"productDescription,omitempty"`
	ProductImageURL    string    `json:"productImageUrl,omitempty"`
	UploadedAt         time.Time `json:"uploadedAt,omitempty"`
}

// Store loads and saves the document through a storage backend.
type Store struct {
	backend storage.Storage
	logger  *logging.Logger
}

// NewStore creates a Store over the given backend.
func NewStore(backend storage.Storage) *Store {
	return &Store{
		backend: backend,
		logger:  logging.NewComponentLogger("metadata"),
	}
}

// Load parses the metadata document. A missing or corrupt document yields
// an empty map: the read path must keep working on bad state. Corruption
// is logged and counted, never returned.
func (s *Store) Load(ctx context.Context) map[string]Record {
	data, _, err := s.backend.Get(ctx, DocumentKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("load metadata document: %v", err)
		}
		return map[string]Record{}
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		corruptionTotal.Inc()
		s.logger.Warn("metadata document corrupt, starting empty: %v", err)
		return map[string]Record{}
	}
	if records == nil {
		records = map[string]Record{}
	}
	return records
}

// Save serializes and overwrites the whole document. Last write wins;
// concurrent writers can drop each other's changes, accepted for a
// single-operator tool.
func (s *Store) Save(ctx context.Context, records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if _, err := s.backend.Put(ctx, DocumentKey, data, "application/json"); err != nil {
		return fmt.Errorf("write metadata document: %w", err)
	}
	return nil
}

// SaveBestEffort saves and swallows any failure, counting it. Used on
// paths where a lost enrichment must not fail the user's request.
func (s *Store) SaveBestEffort(ctx context.Context, records map[string]Record) {
	if err := s.Save(ctx, records); err != nil {
		saveFailuresTotal.Inc()
		s.logger.Warn("metadata save failed, continuing: %v", err)
	}
}
