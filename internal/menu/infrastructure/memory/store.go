package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
)

// Store keeps the override layer in memory with a best-effort JSON
// snapshot on disk, mirroring how the demo order store persists.
type Store struct {
	log  *slog.Logger
	path string

	mu sync.Mutex
	ov domain.Overrides
}

// NewStore loads the snapshot at path if one exists; a missing or
// malformed file means an empty override layer. An empty path disables
// persistence entirely.
func NewStore(log *slog.Logger, path string) *Store {
	s := &Store{log: log, path: path, ov: domain.Overrides{}}
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("menu snapshot read failed", "path", path, "err", err)
		}
		return s
	}
	var ov domain.Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		log.Warn("menu snapshot malformed, starting empty", "path", path, "err", err)
		return s
	}
	s.ov = ov
	return s
}

func (s *Store) Get(ctx context.Context) (domain.Overrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Overrides, len(s.ov))
	for k, v := range s.ov {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, ov domain.Overrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ov = make(domain.Overrides, len(ov))
	for k, v := range ov {
		s.ov[k] = v
	}
	s.persistLocked()
	return nil
}

// persistLocked writes the snapshot. Durability is best-effort: a
// failed write is logged and the in-memory state stays authoritative.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(s.ov, "", "  ")
	if err != nil {
		s.log.Warn("menu snapshot marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Warn("menu snapshot write failed", "path", s.path, "err", err)
	}
}
