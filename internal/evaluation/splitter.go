package evaluation

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

var (
	ErrInvalidFraction = errors.New("test fraction must be between 0 and 1")
	ErrSplitInvariant  = errors.New("split invariant violated")
)

// Partition is a disjoint cover of row positions [0, N) by a train and a test
// set, both sorted ascending.
type Partition struct {
	Train []int
	Test  []int
}

func (p Partition) Len() int {
	return len(p.Train) + len(p.Test)
}

// SplitIndices draws floor(fraction*n) test positions without replacement from
// a source seeded with seed; the train set is the complement. The same inputs
// always give the same partition.
func SplitIndices(n int, fraction float64, seed int64) (Partition, error) {
	if fraction <= 0 || fraction >= 1 {
		return Partition{}, fmt.Errorf("%w: got %v", ErrInvalidFraction, fraction)
	}
	if n < 0 {
		return Partition{}, fmt.Errorf("negative dataset size %d", n)
	}

	testSize := int(fraction * float64(n))

	rng := rand.New(rand.NewSource(seed))
	test := append([]int(nil), rng.Perm(n)[:testSize]...)
	sort.Ints(test)

	inTest := make(map[int]bool, testSize)
	for _, idx := range test {
		inTest[idx] = true
	}
	train := make([]int, 0, n-testSize)
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}

	p := Partition{Train: train, Test: test}
	if err := p.Check(n); err != nil {
		return Partition{}, err
	}
	return p, nil
}

// Check verifies that the partition has no duplicate test positions, that train
// and test are disjoint, and that together they cover exactly [0, n).
func (p Partition) Check(n int) error {
	seen := make(map[int]bool, n)
	for _, idx := range p.Test {
		if seen[idx] {
			return fmt.Errorf("%w: duplicate test index %d", ErrSplitInvariant, idx)
		}
		seen[idx] = true
	}
	for _, idx := range p.Train {
		if seen[idx] {
			return fmt.Errorf("%w: index %d in both train and test", ErrSplitInvariant, idx)
		}
		seen[idx] = true
	}
	if len(seen) != n {
		return fmt.Errorf("%w: partition covers %d of %d rows", ErrSplitInvariant, len(seen), n)
	}
	for idx := range seen {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: index %d outside [0, %d)", ErrSplitInvariant, idx, n)
		}
	}
	return nil
}

type splitKey struct {
	n        int
	fraction float64
	seed     int64
}

// SplitCache memoizes partitions for the lifetime of an experiment session.
type SplitCache struct {
	mu    sync.Mutex
	cache map[splitKey]Partition
}

func NewSplitCache() *SplitCache {
	return &SplitCache{cache: make(map[splitKey]Partition)}
}

// Get returns the cached partition for the inputs, computing it on first use.
// Callers must not modify the returned slices.
func (c *SplitCache) Get(n int, fraction float64, seed int64) (Partition, error) {
	key := splitKey{n: n, fraction: fraction, seed: seed}

	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.cache[key]; ok {
		return p, nil
	}
	p, err := SplitIndices(n, fraction, seed)
	if err != nil {
		return Partition{}, err
	}
	c.cache[key] = p
	return p, nil
}

func (c *SplitCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *SplitCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[splitKey]Partition)
}
