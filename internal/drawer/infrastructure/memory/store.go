package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ymaeda2106/Stall-Order-System/internal/drawer/domain"
)

// Store keeps drawer sheets in memory, keyed by day, with a JSON
// snapshot file for durability across restarts. Persistence is best
// effort; a failed write is logged and the in-memory state stays
// authoritative.
type Store struct {
	log  *slog.Logger
	path string

	mu     sync.Mutex
	sheets map[string]domain.Sheet
}

func NewStore(log *slog.Logger, path string) *Store {
	s := &Store{
		log:    log,
		path:   path,
		sheets: make(map[string]domain.Sheet),
	}
	s.load()
	return s
}

func (s *Store) Get(_ context.Context, date string) (domain.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet, ok := s.sheets[date]
	if !ok {
		return domain.Sheet{}, domain.ErrNotFound
	}
	return cloneSheet(sheet), nil
}

func (s *Store) Save(_ context.Context, sheet domain.Sheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sheets[sheet.Date] = cloneSheet(sheet)
	s.persistLocked()
	return nil
}

func cloneSheet(sheet domain.Sheet) domain.Sheet {
	out := sheet
	out.Counts = make(domain.Counts, len(sheet.Counts))
	for k, v := range sheet.Counts {
		out.Counts[k] = v
	}
	out.Vouchers = append([]domain.VoucherUse(nil), sheet.Vouchers...)
	return out
}

type snapshot struct {
	Sheets  map[string]domain.Sheet `json:"sheets"`
	SavedAt time.Time               `json:"savedAt"`
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("drawer snapshot read failed", "path", s.path, "err", err)
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("drawer snapshot malformed, starting empty", "path", s.path, "err", err)
		return
	}
	if snap.Sheets != nil {
		s.sheets = snap.Sheets
	}
}

func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(snapshot{Sheets: s.sheets, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		s.log.Warn("drawer snapshot encode failed", "err", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Warn("drawer snapshot write failed", "path", s.path, "err", err)
	}
}
