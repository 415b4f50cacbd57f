package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileProvider loads search results from a local JSON file for offline/testing use.
// The JSON file format is an array of objects: {"url": "...", "title": "...", "description": "..."}.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, term string, count, skip int) ([]Hit, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, fmt.Errorf("%w: file provider path is empty", ErrSearchFailed)
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	var raw []Hit
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrSearchFailed, f.Path, err)
	}
	q := strings.ToLower(strings.TrimSpace(term))
	out := make([]Hit, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	return page(out, count, skip), nil
}
