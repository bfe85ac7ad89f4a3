package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/docstore/keycodec"
	"github.com/hupe1980/docstore/query"
	"github.com/hupe1980/docstore/value"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n) with skew s.
// s=1.0 gives standard Zipf, s=1.5 gives a heavy tail.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked samples by inverse transform (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// Present returns n flags, each false with probability missingRate.
func (r *RNG) Present(n int, missingRate float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	present := make([]bool, n)
	for i := range n {
		present[i] = r.rand.Float64() >= missingRate
	}
	return present
}

// BinID returns a generic subtype BinData value of length bytes.
func (r *RNG) BinID(length int) value.Value {
	r.mu.Lock()
	b := make([]byte, length)
	_, _ = r.rand.Read(b)
	r.mu.Unlock()

	v, err := value.BinData(value.SubtypeGeneric, b)
	if err != nil {
		panic(err)
	}
	return v
}

// Documents generates n documents with integer _id 0..n-1, a Zipf-skewed
// "tag" string, an int "a" in [0, 10) and an int "b" in [0, 100). Each of
// a and b is missing with probability missingRate.
func (r *RNG) Documents(n int, missingRate float64) []value.Document {
	docs := make([]value.Document, n)
	for i := range n {
		d := value.D(value.IDField, int64(i), "tag", fmt.Sprintf("t%d", r.Zipf(8, 1.2)))
		if r.Float64() >= missingRate {
			d = d.Set("a", value.Int(int64(r.Intn(10))))
		}
		if r.Float64() >= missingRate {
			d = d.Set("b", value.Int(int64(r.Intn(100))))
		}
		docs[i] = d
	}
	return docs
}

// Events generates n time-series events starting at start, step apart.
// timeField holds the date, metaField a sub-document with a "tag" picked
// from tags, and "v" a float measurement.
func (r *RNG) Events(n int, start time.Time, step time.Duration, timeField, metaField string, tags ...string) []value.Document {
	if len(tags) == 0 {
		tags = []string{"a"}
	}
	events := make([]value.Document, n)
	for i := range n {
		events[i] = value.D(
			timeField, value.Date(start.Add(time.Duration(i)*step)),
			metaField, value.D("tag", tags[r.Intn(len(tags))]),
			"v", r.Float64()*100,
		)
	}
	return events
}

// BruteForceFind returns the documents matching f, in _id order. It is the
// ground truth planner results are compared against.
func BruteForceFind(docs []value.Document, f query.Filter) []value.Document {
	var out []value.Document
	for _, d := range docs {
		if f.MatchesDocument(d) {
			out = append(out, d)
		}
	}
	SortByID(out)
	return out
}

// SortByID orders documents by their _id in key order.
func SortByID(docs []value.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i].ID()
		b, _ := docs[j].ID()
		return keycodec.Compare(a, b) < 0
	})
}

// IDs returns the _id of every document.
func IDs(docs []value.Document) []value.Value {
	out := make([]value.Value, len(docs))
	for i, d := range docs {
		out[i], _ = d.ID()
	}
	return out
}
