// Package reports holds the compliance reports a session is working on.
package reports

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

// DefaultMaxEntries bounds the id map when no size is configured.
const DefaultMaxEntries = 64

// Store is the working-object cache: reports by id plus the currently active
// report. The active report is held outside the id map and is never evicted.
type Store struct {
	mu      sync.Mutex
	byID    *lru.Cache[int, *domain.ComplianceReport]
	current *domain.ComplianceReport
	gens    map[int]uint64
	logger  *zap.Logger
}

// NewStore creates a store keeping at most maxEntries reports by id.
func NewStore(maxEntries int, logger *zap.Logger) (*Store, error) {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{gens: make(map[int]uint64), logger: logger}
	byID, err := lru.NewWithEvict(maxEntries, func(id int, _ *domain.ComplianceReport) {
		s.logger.Debug("working report evicted", zap.Int("report_id", id))
	})
	if err != nil {
		return nil, err
	}
	s.byID = byID
	return s, nil
}

// SetCurrentReport replaces the active slot with report and caches it by id.
// A nil report empties the slot and leaves the id map alone.
func (s *Store) SetCurrentReport(report *domain.ComplianceReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = report
	if report != nil {
		s.byID.Add(report.ComplianceReportID, report)
	}
}

// Generation returns the removal counter of id. Take it before fetching a
// report and hand it to SetCurrentReportAt afterwards.
func (s *Store) Generation(id int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gens[id]
}

// SetCurrentReportAt behaves like SetCurrentReport unless the report was
// removed since gen was taken, in which case nothing is stored and false is
// returned.
func (s *Store) SetCurrentReportAt(report *domain.ComplianceReport, gen uint64) bool {
	if report == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[report.ComplianceReportID] != gen {
		return false
	}
	s.current = report
	s.byID.Add(report.ComplianceReportID, report)
	return true
}

// CacheReport stores report by id without touching the active slot.
func (s *Store) CacheReport(id int, report *domain.ComplianceReport) {
	if report == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID.Add(id, report)
}

// GetCachedReport returns the report stored under id.
func (s *Store) GetCachedReport(id int) (*domain.ComplianceReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byID.Get(id)
}

// ClearCurrentReport empties the active slot. Cached reports stay.
func (s *Store) ClearCurrentReport() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
}

// RemoveReport drops id from the map and clears the active slot when it holds
// id. Fetches of id started before the call can no longer be stored.
func (s *Store) RemoveReport(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[id]++
	s.byID.Remove(id)
	if s.current != nil && s.current.ComplianceReportID == id {
		s.current = nil
	}
}

// CurrentReportID returns the active report id, if any.
func (s *Store) CurrentReportID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return 0, false
	}
	return s.current.ComplianceReportID, true
}

// CurrentReport returns the active report, if any.
func (s *Store) CurrentReport() (*domain.ComplianceReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current, s.current != nil
}

// IsReportCached reports whether id is in the map.
func (s *Store) IsReportCached(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byID.Contains(id)
}

// GetReportByIDOrCurrent looks id up in the map first, then falls back to
// the active report when its id matches.
func (s *Store) GetReportByIDOrCurrent(id int) (*domain.ComplianceReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report, ok := s.byID.Get(id); ok {
		return report, true
	}
	if s.current != nil && s.current.ComplianceReportID == id {
		return s.current, true
	}
	return nil, false
}

// Len returns the number of reports cached by id.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byID.Len()
}
