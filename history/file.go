package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// DefaultPageSize is the page size of a FileSource.
const DefaultPageSize = 50

// FileSource serves history from a JSON file holding an array of items, such
// as one written by another device. The cursor is the offset of the next
// item.
type FileSource struct {
	Path     string
	PageSize int
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, PageSize: DefaultPageSize}
}

// History implements Source.
func (f *FileSource) History(ctx context.Context, cursor string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("invalid history cursor %q", cursor)
		}
		offset = n
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Page{}, fmt.Errorf("reading history file: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return Page{}, fmt.Errorf("decoding history file: %w", err)
	}

	size := f.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if offset >= len(items) {
		return Page{}, nil
	}
	end := min(offset+size, len(items))

	page := Page{Items: items[offset:end]}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Verify FileSource implements Source
var _ Source = (*FileSource)(nil)
