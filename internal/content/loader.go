package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/resilience"
)

// ErrCollectionMissing is returned when a collection's file does not exist.
var ErrCollectionMissing = errors.New("content collection missing")

// validatable is implemented by every content type.
type validatable interface {
	Validate() error
}

// Loader reads content collections from <dir>/<collection>.json on every
// call. There is no caching here; the search index owns that.
type Loader struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewLoader creates a Loader rooted at dir. A non-positive timeout disables
// the per-file deadline.
func NewLoader(dir string, timeout time.Duration) *Loader {
	return &Loader{
		dir:     dir,
		timeout: timeout,
		logger:  slog.Default().With("component", "content-loader"),
	}
}

// Dir returns the data directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Ping checks that the data directory is readable.
func (l *Loader) Ping(ctx context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content directory %s is not a directory", l.dir)
	}
	return nil
}

func (l *Loader) Faculty(ctx context.Context) ([]Faculty, error) {
	return load[Faculty](ctx, l, CollectionFaculty)
}

func (l *Loader) Research(ctx context.Context) ([]ResearchProject, error) {
	return load[ResearchProject](ctx, l, CollectionResearch)
}

func (l *Loader) News(ctx context.Context) ([]NewsArticle, error) {
	return load[NewsArticle](ctx, l, CollectionNews)
}

func (l *Loader) Events(ctx context.Context) ([]Event, error) {
	return load[Event](ctx, l, CollectionEvents)
}

func (l *Loader) Publications(ctx context.Context) ([]Publication, error) {
	return load[Publication](ctx, l, CollectionPublications)
}

func (l *Loader) Datasets(ctx context.Context) ([]Dataset, error) {
	return load[Dataset](ctx, l, CollectionDatasets)
}

func (l *Loader) Software(ctx context.Context) ([]Software, error) {
	return load[Software](ctx, l, CollectionSoftware)
}

// load reads and decodes one collection, dropping items that fail
// validation. The file may hold either a bare array or {"items": [...]}.
func load[T validatable](ctx context.Context, l *Loader, collection string) ([]T, error) {
	path := filepath.Join(l.dir, collection+".json")
	var data []byte
	err := resilience.WithTimeout(ctx, l.timeout, "load "+collection, func(ctx context.Context) error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionMissing, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	items, err := decode[T](data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	valid := make([]T, 0, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			l.logger.Warn("skipping invalid content item",
				"collection", collection,
				"index", i,
				"error", err,
			)
			continue
		}
		valid = append(valid, item)
	}
	l.logger.Debug("collection loaded",
		"collection", collection,
		"items", len(valid),
		"skipped", len(items)-len(valid),
	)
	return valid, nil
}

func decode[T any](data []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Items, nil
}
