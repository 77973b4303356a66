// Package bloom provides a fixed-size probabilistic membership filter.
//
// The filter is sized from an anticipated capacity and a target
// false-positive rate, and probes k bit positions derived from two hashes
// using Dillinger and Manolios double hashing. There are no false negatives.
// Adding more items than the design capacity is allowed, but the
// false-positive rate then degrades beyond the configured error rate.
package bloom

import (
	"encoding/binary"
	"hash/maphash"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// MaxBits is the largest bit array a filter will allocate.
const MaxBits = math.MaxInt32

// HashFunc hashes an element of the filter.
type HashFunc[T any] func(item T) uint64

// Membership is the read/write contract shared by probabilistic sets.
type Membership[T any] interface {
	// Add inserts an item. Items cannot be removed.
	Add(item T)

	// Contains reports whether the item may have been added.
	// False means the item was definitely never added.
	Contains(item T) bool

	// Truthiness is the fraction of set bits, from 0 to 1.
	Truthiness() float64
}

// Filter is a Bloom filter over comparable elements.
// It is not safe for concurrent use.
type Filter[T comparable] struct {
	bits      *bitset.BitSet
	m         uint64
	k         int
	capacity  int
	errorRate float64
	added     int

	primary   HashFunc[T]
	secondary HashFunc[T]
}

// Compile-time interface check.
var _ Membership[string] = (*Filter[string])(nil)

// Option configures filter construction.
type Option[T comparable] func(*options[T])

type options[T comparable] struct {
	errorRate float64
	primary   HashFunc[T]
	secondary HashFunc[T]
}

// WithErrorRate sets the acceptable false-positive rate, e.g. 0.001 for 0.1%.
// Default: BestErrorRate(capacity).
func WithErrorRate[T comparable](p float64) Option[T] {
	return func(o *options[T]) {
		o.errorRate = p
	}
}

// WithHashFunc sets the secondary hash function. It is required unless T is
// string or an integer type.
func WithHashFunc[T comparable](fn HashFunc[T]) Option[T] {
	return func(o *options[T]) {
		o.secondary = fn
	}
}

// WithPrimaryHashFunc overrides the built-in hash used as the first
// component of double hashing.
func WithPrimaryHashFunc[T comparable](fn HashFunc[T]) Option[T] {
	return func(o *options[T]) {
		o.primary = fn
	}
}

// New creates a filter using the optimal bit array length and probe count
// for the given capacity and error rate.
func New[T comparable](capacity int, opts ...Option[T]) (*Filter[T], error) {
	if capacity <= 0 {
		return nil, &ConstructionError{Capacity: capacity, Err: ErrInvalidCapacity}
	}

	o := options[T]{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.errorRate == 0 {
		o.errorRate = BestErrorRate(capacity)
	}
	if o.errorRate <= 0 || o.errorRate >= 1 || math.IsNaN(o.errorRate) {
		return nil, &ConstructionError{Capacity: capacity, ErrorRate: o.errorRate, Err: ErrInvalidErrorRate}
	}

	m, k, err := Sizing(capacity, o.errorRate)
	if err != nil {
		return nil, err
	}

	if o.secondary == nil {
		o.secondary = builtinSecondary[T]()
		if o.secondary == nil {
			return nil, &ConstructionError{Capacity: capacity, ErrorRate: o.errorRate, Err: ErrMissingHashFunction}
		}
	}
	if o.primary == nil {
		o.primary = builtinPrimary[T]()
	}

	return &Filter[T]{
		bits:      bitset.New(uint(m)),
		m:         uint64(m),
		k:         k,
		capacity:  capacity,
		errorRate: o.errorRate,
		primary:   o.primary,
		secondary: o.secondary,
	}, nil
}

// Sizing computes the bit array length m and probe count k for capacity n
// and false-positive rate p:
//
//	m = ceil(n * log(p) / log(1 / 2^ln2))
//	k = round(ln2 * m / n)
func Sizing(capacity int, errorRate float64) (m, k int, err error) {
	best := math.Ceil(float64(capacity) * math.Log(errorRate) / math.Log(1/math.Pow(2, math.Ln2)))
	if best < 1 || best > MaxBits || math.IsNaN(best) {
		return 0, 0, &ConstructionError{Capacity: capacity, ErrorRate: errorRate, Err: ErrCapacityOverflow}
	}
	m = int(best)
	k = int(math.Round(math.Ln2 * float64(m) / float64(capacity)))
	if k < 1 {
		k = 1
	}
	return m, k, nil
}

// BestErrorRate returns 1/capacity, falling back to 0.6185^(MaxInt32/capacity)
// when 1/capacity is too close to zero to be useful. The result is capped
// below 1 so that tiny capacities still produce a valid filter.
// See http://www.cs.princeton.edu/courses/archive/spring02/cs493/lec7.pdf
func BestErrorRate(capacity int) float64 {
	if capacity <= 2 {
		return 0.5
	}
	c := float32(1.0 / float64(capacity))
	if math.Abs(float64(c)) > 0.00000001 {
		return float64(c)
	}
	return math.Pow(0.6185, float64(math.MaxInt32)/float64(capacity))
}

// Add sets the k bits for item.
func (f *Filter[T]) Add(item T) {
	primary, secondary := f.primary(item), f.secondary(item)
	for i := 0; i < f.k; i++ {
		f.bits.Set(uint(f.probe(primary, secondary, i)))
	}
	f.added++
}

// Contains returns true only if all k bits for item are set.
func (f *Filter[T]) Contains(item T) bool {
	primary, secondary := f.primary(item), f.secondary(item)
	for i := 0; i < f.k; i++ {
		if !f.bits.Test(uint(f.probe(primary, secondary, i))) {
			return false
		}
	}
	return true
}

// Truthiness returns the ratio of set bits to total bits. A correctly sized
// filter filled to capacity sits near 0.5.
func (f *Filter[T]) Truthiness() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// M returns the bit array length.
func (f *Filter[T]) M() int { return int(f.m) }

// K returns the number of probes per item.
func (f *Filter[T]) K() int { return f.k }

// Capacity returns the design capacity.
func (f *Filter[T]) Capacity() int { return f.capacity }

// ErrorRate returns the configured false-positive rate.
func (f *Filter[T]) ErrorRate() float64 { return f.errorRate }

// Added returns how many times Add has been called, including repeats.
func (f *Filter[T]) Added() int { return f.added }

// Saturated reports whether more items were added than the filter was sized for.
func (f *Filter[T]) Saturated() bool { return f.added > f.capacity }

// probe performs Dillinger and Manolios double hashing. Both hashes are
// reduced mod m first so the sum cannot wrap and every probe stays in the
// same progression.
func (f *Filter[T]) probe(primary, secondary uint64, i int) uint64 {
	return (primary%f.m + uint64(i)*(secondary%f.m)) % f.m
}

// builtinSecondary returns the bundled secondary hash for string and integer
// element types, or nil.
func builtinSecondary[T comparable]() HashFunc[T] {
	var zero T
	switch any(zero).(type) {
	case string:
		return func(item T) uint64 {
			return uint64(HashString(any(item).(string)))
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return func(item T) uint64 {
			v, _ := integerValue(item)
			return uint64(HashInt32(int32(v ^ v>>32)))
		}
	}
	return nil
}

// builtinPrimary returns xxhash of strings and of the little-endian bytes of
// integers, and maphash for everything else. Hashing integers rather than
// using the value keeps negative keys spread across the bit array.
func builtinPrimary[T comparable]() HashFunc[T] {
	var zero T
	switch any(zero).(type) {
	case string:
		return func(item T) uint64 {
			return xxhash.Sum64String(any(item).(string))
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return func(item T) uint64 {
			v, _ := integerValue(item)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v))
			return xxhash.Sum64(b[:])
		}
	}
	seed := maphash.MakeSeed()
	return func(item T) uint64 {
		return maphash.Comparable(seed, item)
	}
}

func integerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uintptr:
		return int64(n), true
	}
	return 0, false
}
