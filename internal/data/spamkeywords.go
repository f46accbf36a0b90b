package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// spamKeywordFile is the on-disk layout of the learned keyword list
type spamKeywordFile struct {
	Keywords  []string  `json:"keywords"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// spamKeywordRepo implements the learned spam keyword repository on a JSON file
type spamKeywordRepo struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSpamKeywordRepo creates a keyword repository backed by the JSON file at path
func NewSpamKeywordRepo(path string) repo.SpamKeywordRepo {
	return &spamKeywordRepo{path: path, now: time.Now}
}

// List returns the learned keywords; a missing file is an empty list
func (r *spamKeywordRepo) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return nil, err
	}
	return f.Keywords, nil
}

// Add merges keywords (trimmed, lowercased) and writes the file only when something is new
func (r *spamKeywordRepo) Add(ctx context.Context, keywords []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.load()
	if err != nil {
		return 0, err
	}

	known := make(map[string]struct{}, len(f.Keywords))
	for _, kw := range f.Keywords {
		known[kw] = struct{}{}
	}

	added := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := known[kw]; ok {
			continue
		}
		known[kw] = struct{}{}
		f.Keywords = append(f.Keywords, kw)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	f.UpdatedAt = r.now()
	if err := r.save(f); err != nil {
		return 0, err
	}
	return added, nil
}

func (r *spamKeywordRepo) load() (*spamKeywordFile, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &spamKeywordFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spam keywords: %w", err)
	}

	var f spamKeywordFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse spam keywords: %w", err)
	}
	return &f, nil
}

// save writes through a temp file so readers never see a partial list
func (r *spamKeywordRepo) save(f *spamKeywordFile) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create keyword directory: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode spam keywords: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write spam keywords: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace spam keywords: %w", err)
	}
	return nil
}
