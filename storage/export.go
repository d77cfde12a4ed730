package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportFormat represents the JSON structure for snapshot export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry is one persisted store snapshot.
type ExportEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Exporter copies persisted store snapshots out of their backends.
type Exporter struct {
	resolver *Resolver
	names    []string
}

// NewExporter creates an exporter for the given store names. With no names,
// every known store is exported.
func NewExporter(resolver *Resolver, names ...string) *Exporter {
	if len(names) == 0 {
		names = StoreNames
	}
	return &Exporter{resolver: resolver, names: names}
}

// Export writes the snapshots to w in JSON format. Stores with no snapshot
// are skipped.
func (e *Exporter) Export(ctx context.Context, w io.Writer, metadata map[string]string) error {
	entries := make([]ExportEntry, 0, len(e.names))
	for _, name := range e.names {
		val, err := e.resolver.Resolve(name).Backend.Get(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		entries = append(entries, ExportEntry{Key: name, Value: val})
	}

	export := ExportFormat{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the snapshots to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(ctx context.Context, path string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(ctx, f, metadata)
}

// Importer loads exported snapshots into their backends.
type Importer struct {
	resolver *Resolver
}

// NewImporter creates a new snapshot importer.
func NewImporter(resolver *Resolver) *Importer {
	return &Importer{resolver: resolver}
}

// Import reads entries from r and stores each under its store name. Entries
// whose value is not valid JSON are counted as failed.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}

	result := &ImportResult{
		Version:  export.Version,
		Metadata: export.Metadata,
	}

	for _, entry := range export.Entries {
		if !json.Valid([]byte(entry.Value)) {
			result.Failed++
			continue
		}
		backend := i.resolver.Resolve(entry.Key).Backend
		if err := backend.Set(ctx, entry.Key, entry.Value); err != nil {
			result.Failed++
			continue
		}
		result.Imported++
	}

	return result, nil
}

// ImportFromFile imports snapshots from a file.
// The path is provided by the caller and is intentionally user-controlled.
func (i *Importer) ImportFromFile(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return i.Import(ctx, f)
}

// ImportResult contains statistics about the import operation.
type ImportResult struct {
	Version  string
	Metadata map[string]string
	Imported int
	Failed   int
}
