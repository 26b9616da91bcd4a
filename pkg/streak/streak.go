package streak

// BoolStreak debounces a noisy boolean signal. The first non-nil observation
// becomes the stable value immediately; after that the stable value only
// flips once N consecutive observations disagree with it.
type BoolStreak struct {
	n       int
	stable  *bool
	counter int
}

func NewBoolStreak(n int) *BoolStreak {
	if n < 1 {
		n = 1
	}
	return &BoolStreak{n: n}
}

// Update feeds one observation and returns the current stable value.
// Nil observations are ignored and do not count toward flipping.
func (s *BoolStreak) Update(val *bool) *bool {
	if val == nil {
		return s.stable
	}
	v := *val

	if s.stable == nil {
		s.stable = &v
		s.counter = 0
		return s.stable
	}

	if v == *s.stable {
		s.counter = 0
		return s.stable
	}

	s.counter++
	if s.counter >= s.n {
		s.stable = &v
		s.counter = 0
	}
	return s.stable
}

// Stable returns the current stable value without consuming an observation.
func (s *BoolStreak) Stable() *bool {
	return s.stable
}

// Set is a small helper for building observation pointers.
func Set(v bool) *bool {
	return &v
}

// Group keys a set of independently debounced signals by name.
type Group struct {
	streaks map[string]*BoolStreak
}

func NewGroup() *Group {
	return &Group{streaks: make(map[string]*BoolStreak)}
}

// Add registers a named signal with its own streak length.
func (g *Group) Add(name string, n int) {
	g.streaks[name] = NewBoolStreak(n)
}

// Update feeds an observation into a named signal. Unknown names are
// debounce-free: the observation is returned unchanged.
func (g *Group) Update(name string, val *bool) *bool {
	s, ok := g.streaks[name]
	if !ok {
		return val
	}
	return s.Update(val)
}
