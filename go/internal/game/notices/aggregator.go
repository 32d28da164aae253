package notices

import (
	"sort"
	"sync"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Aggregator keeps the ordered, de-duplicated notice list of one session.
// The list is always announcements first, then everything else, each tier
// newest-first.
type Aggregator struct {
	mu       sync.RWMutex
	items    []models.Notice
	seen     map[string]struct{}
	ownTeam  string
	lastRead time.Time
	loaded   bool
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[string]struct{})}
}

// SetTeamName sets the viewer's team used for blood matching.
func (a *Aggregator) SetTeamName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ownTeam = name
}

// Load replaces the list with a bulk fetch, keeping notices pushed while
// the fetch was in flight.
func (a *Aggregator) Load(fetched []models.Notice) {
	a.mu.Lock()
	defer a.mu.Unlock()

	merged := make([]models.Notice, 0, len(a.items)+len(fetched))
	seen := make(map[string]struct{}, cap(merged))
	for _, n := range append(append([]models.Notice{}, a.items...), fetched...) {
		if !n.Category.Valid() {
			continue
		}
		key := n.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, n)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		ti, tj := merged[i].Category.Tier(), merged[j].Category.Tier()
		if ti != tj {
			return ti < tj
		}
		return merged[i].CreateTime.After(merged[j].CreateTime)
	})

	a.items = merged
	a.seen = seen
	a.loaded = true

	log.Debug().Int("fetched", len(fetched)).Int("total", len(merged)).Msg("notices loaded")
}

// Push inserts a live notice and returns the side effects it requests.
// Duplicates and unknown categories yield no intents.
func (a *Aggregator) Push(n models.Notice) []Intent {
	if !n.Category.Valid() {
		log.Warn().Str("category", string(n.Category)).Msg("dropping notice with unknown category")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := n.Key()
	if _, dup := a.seen[key]; dup {
		return nil
	}
	a.seen[key] = struct{}{}
	a.items = insert(a.items, n)

	return intentsFor(n, a.ownTeam)
}

// insert places n at the head of its tier, or further down when older items
// already exist. Equal timestamps go before existing items.
func insert(list []models.Notice, n models.Notice) []models.Notice {
	tier := n.Category.Tier()
	idx := sort.Search(len(list), func(i int) bool {
		t := list[i].Category.Tier()
		if t != tier {
			return t > tier
		}
		return !list[i].CreateTime.After(n.CreateTime)
	})

	list = append(list, models.Notice{})
	copy(list[idx+1:], list[idx:])
	list[idx] = n
	return list
}

// List returns a copy of the ordered list.
func (a *Aggregator) List() []models.Notice {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Notice{}, a.items...)
}

// Loaded reports whether a bulk load completed.
func (a *Aggregator) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// CountByCategory counts the list per category.
func (a *Aggregator) CountByCategory() map[models.NoticeCategory]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[models.NoticeCategory]int)
	for _, n := range a.items {
		counts[n.Category]++
	}
	return counts
}

// Count counts notices in any of the given categories.
func (a *Aggregator) Count(categories ...models.NoticeCategory) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := 0
	for _, n := range a.items {
		for _, c := range categories {
			if n.Category == c {
				total++
				break
			}
		}
	}
	return total
}

// MarkRead marks every notice created up to at as read.
func (a *Aggregator) MarkRead(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if at.After(a.lastRead) {
		a.lastRead = at
	}
}

// Unread counts notices created after the last MarkRead.
func (a *Aggregator) Unread() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	unread := 0
	for _, n := range a.items {
		if n.CreateTime.After(a.lastRead) {
			unread++
		}
	}
	return unread
}

// Reset discards the session's notices.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	a.seen = make(map[string]struct{})
	a.lastRead = time.Time{}
	a.loaded = false
}
