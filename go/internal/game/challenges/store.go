package challenges

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"
)

// ErrUnknownChallenge is returned when selecting a challenge not in the list.
var ErrUnknownChallenge = errors.New("unknown challenge")

// DefaultCategory groups challenges with an empty category.
const DefaultCategory = "misc"

// Policy decides how a refresh reconciles with optimistic local solves.
type Policy string

const (
	// MonotonicMerge never un-solves and keeps the larger solve count.
	MonotonicMerge Policy = "monotonic"
	// ServerAuthoritative takes the server's view as is.
	ServerAuthoritative Policy = "server"
)

// Grouping maps a lower-cased category to its challenges in server order.
type Grouping map[string][]models.ChallengeSummary

// Categories returns the category names sorted.
func (g Grouping) Categories() []string {
	out := make([]string, 0, len(g))
	for c := range g {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Group builds the grouping of a flat challenge list.
func Group(list []models.ChallengeSummary) Grouping {
	g := make(Grouping)
	for _, c := range list {
		category := strings.ToLower(strings.TrimSpace(c.Category))
		if category == "" {
			category = DefaultCategory
		}
		g[category] = append(g[category], c)
	}
	return g
}

// Store is the in-memory projection of challenges and solve status.
type Store struct {
	viewer models.Viewer
	policy Policy

	mu       sync.RWMutex
	grouping Grouping
	byID     map[int64]models.ChallengeSummary
	status   map[int64]models.SolveStatus
	selected int64
	version  uint64
}

// NewStore creates an empty store.
func NewStore(viewer models.Viewer, policy Policy) *Store {
	if policy == "" {
		policy = MonotonicMerge
	}
	return &Store{
		viewer:   viewer,
		policy:   policy,
		grouping: make(Grouping),
		byID:     make(map[int64]models.ChallengeSummary),
		status:   make(map[int64]models.SolveStatus),
	}
}

// Apply merges a refreshed list. The grouping is replaced only when it
// changed; it reports whether it did.
func (s *Store) Apply(list *models.ChallengeList) bool {
	if list == nil {
		return false
	}

	next := Group(list.Challenges)
	solved := make(map[int64]bool, len(list.Solved))
	for _, sc := range list.Solved {
		solved[sc.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := !cmp.Equal(s.grouping, next)
	if changed {
		s.grouping = next
		s.version++
	}

	byID := make(map[int64]models.ChallengeSummary, len(list.Challenges))
	status := make(map[int64]models.SolveStatus, len(list.Challenges))
	for _, c := range list.Challenges {
		byID[c.ID] = c
		status[c.ID] = s.reconcile(s.status[c.ID], c, solved[c.ID])
	}
	s.byID = byID
	s.status = status

	if _, ok := byID[s.selected]; s.selected != 0 && !ok {
		log.Info().Int64("challenge_id", s.selected).Msg("selected challenge vanished, clearing selection")
		s.selected = 0
	}

	return changed
}

func (s *Store) reconcile(local models.SolveStatus, c models.ChallengeSummary, serverSolved bool) models.SolveStatus {
	server := models.SolveStatus{Solved: serverSolved, SolveCount: c.SolveCount, CurScore: c.CurScore}
	if s.policy == ServerAuthoritative {
		return server
	}

	merged := server
	merged.Solved = local.Solved || serverSolved
	if local.SolveCount > merged.SolveCount {
		merged.SolveCount = local.SolveCount
	}
	return merged
}

// MarkAccepted records an accepted submission. Privileged viewers are not
// counted.
func (s *Store) MarkAccepted(challengeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[challengeID]
	if !st.Solved && !s.viewer.IsPrivileged() {
		st.SolveCount++
	}
	st.Solved = true
	s.status[challengeID] = st
}

// ConfirmSolved marks the challenge named name as solved without touching
// counts. It reports whether the challenge was found.
func (s *Store) ConfirmSolved(name string) bool {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.byID {
		if strings.TrimSpace(c.Name) != name {
			continue
		}
		st := s.status[id]
		st.Solved = true
		s.status[id] = st
		return true
	}
	return false
}

// Select selects a challenge.
func (s *Store) Select(challengeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[challengeID]; !ok {
		return ErrUnknownChallenge
	}
	s.selected = challengeID
	return nil
}

// Selected returns the selected challenge.
func (s *Store) Selected() (models.ChallengeSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[s.selected]
	return c, ok && s.selected != 0
}

// Grouping returns a copy of the current grouping.
func (s *Store) Grouping() Grouping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Grouping, len(s.grouping))
	for k, v := range s.grouping {
		out[k] = append([]models.ChallengeSummary{}, v...)
	}
	return out
}

// Status returns the solve status of a challenge.
func (s *Store) Status(challengeID int64) (models.SolveStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[challengeID]
	return st, ok
}

// Statuses returns a copy of every solve status.
func (s *Store) Statuses() map[int64]models.SolveStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.SolveStatus, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Version increments every time the grouping is replaced.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
