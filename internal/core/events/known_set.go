package events

// KnownSet remembers which record identities were already turned into
// events. It is bounded: once the cap is reached the oldest identity
// is forgotten, which keeps long-running monitors from growing without
// limit at the price of possibly re-announcing very old records.
type KnownSet struct {
	cap   int
	order []string
	seen  map[string]struct{}
}

func NewKnownSet(cap int) *KnownSet {
	return &KnownSet{
		cap:  cap,
		seen: make(map[string]struct{}),
	}
}

// RestoreKnownSet rebuilds a set from a persisted snapshot, dropping
// the oldest entries if the cap shrank.
func RestoreKnownSet(cap int, ids []string) *KnownSet {
	s := NewKnownSet(cap)
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *KnownSet) Has(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *KnownSet) Add(id string) {
	if s.Has(id) {
		return
	}
	s.order = append(s.order, id)
	s.seen[id] = struct{}{}
	for s.cap > 0 && len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
}

func (s *KnownSet) Len() int {
	return len(s.order)
}

// Snapshot returns the identities oldest-first, for persistence.
func (s *KnownSet) Snapshot() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
