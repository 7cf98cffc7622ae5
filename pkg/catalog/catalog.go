package catalog

import "fmt"

// GroupSize is the number of challenges offered in each weekly poll.
const GroupSize = 5

// Challenge is one predefined weekly challenge. The ID is stable across
// catalog reordering; Index is the position in the stored order.
type Challenge struct {
	ID               int
	Index            int
	Name             string
	Description      string
	DailyRequirement string
	MinimalDose      string
	DaysRequired     int
	Category         string
	Source           string
	Link             string
}

// Catalog is the immutable, ordered list of challenge definitions, loaded
// once at startup. It keeps the scheduler free of raw index math.
type Catalog struct {
	challenges []Challenge
	byID       map[int]int
}

// New builds a catalog from the given definitions. The length must divide
// evenly into poll groups of GroupSize.
func New(challenges []Challenge) (*Catalog, error) {
	if len(challenges) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	if len(challenges)%GroupSize != 0 {
		return nil, fmt.Errorf("catalog length %d is not divisible by group size %d", len(challenges), GroupSize)
	}

	byID := make(map[int]int, len(challenges))
	out := make([]Challenge, len(challenges))
	for i, c := range challenges {
		c.Index = i
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate challenge id %d", c.ID)
		}
		byID[c.ID] = i
		out[i] = c
	}

	return &Catalog{challenges: out, byID: byID}, nil
}

// Default returns the catalog built from the static definitions.
func Default() *Catalog {
	c, err := New(definitions())
	if err != nil {
		// definitions() is compiled in; failing here is a programming error
		panic(err)
	}
	return c
}

// All returns the full catalog in stored order.
func (c *Catalog) All() []Challenge {
	out := make([]Challenge, len(c.challenges))
	copy(out, c.challenges)
	return out
}

// ByIndex returns the challenge at position i, or nil when i is out of
// range. Callers treat "not found" as a loggable condition, never a panic.
func (c *Catalog) ByIndex(i int) *Challenge {
	if !c.IsValidIndex(i) {
		return nil
	}
	ch := c.challenges[i]
	return &ch
}

// ByID returns the challenge with the given stable ID, or nil.
func (c *Catalog) ByID(id int) *Challenge {
	i, ok := c.byID[id]
	if !ok {
		return nil
	}
	ch := c.challenges[i]
	return &ch
}

// BySource returns all challenges contributed by the given author.
func (c *Catalog) BySource(source string) []Challenge {
	out := make([]Challenge, 0, GroupSize)
	for _, ch := range c.challenges {
		if ch.Source == source {
			out = append(out, ch)
		}
	}
	return out
}

// NextIndex wraps from the last challenge back to the first. Used as the
// fallback rotation when voting data is unavailable.
func (c *Catalog) NextIndex(i int) int {
	return (i + 1) % len(c.challenges)
}

// PreviousIndex wraps from the first challenge back to the last.
func (c *Catalog) PreviousIndex(i int) int {
	if i == 0 {
		return len(c.challenges) - 1
	}
	return i - 1
}

// IsValidIndex reports whether i addresses a challenge.
func (c *Catalog) IsValidIndex(i int) bool {
	return i >= 0 && i < len(c.challenges)
}

// Len returns the catalog size.
func (c *Catalog) Len() int {
	return len(c.challenges)
}

// GroupCount returns the number of poll groups.
func (c *Catalog) GroupCount() int {
	return len(c.challenges) / GroupSize
}

// Group returns the challenges in poll group n, i.e. positions
// [n*GroupSize, (n+1)*GroupSize). An out-of-range group is empty.
func (c *Catalog) Group(n int) []Challenge {
	start := n * GroupSize
	end := start + GroupSize
	if n < 0 || start >= len(c.challenges) {
		return nil
	}
	out := make([]Challenge, end-start)
	copy(out, c.challenges[start:end])
	return out
}
