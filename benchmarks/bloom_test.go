package benchmarks

import (
	"strconv"
	"testing"

	"github.com/randalmurphal/eventseq/pkg/eventseq/bloom"
)

// BenchmarkBloom_AddString measures string inserts with the default hashes.
func BenchmarkBloom_AddString(b *testing.B) {
	f, err := bloom.New[string](100_000)
	if err != nil {
		b.Fatal(err)
	}
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = "order-" + strconv.Itoa(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Add(keys[i%len(keys)])
	}
}

// BenchmarkBloom_ContainsUint64 measures version probes, the resequencer's use.
func BenchmarkBloom_ContainsUint64(b *testing.B) {
	f, err := bloom.New[uint64](10_240)
	if err != nil {
		b.Fatal(err)
	}
	for v := uint64(0); v < 10_240; v += 2 {
		f.Add(v)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Contains(uint64(i % 20_480))
	}
}

// BenchmarkBloom_New measures construction at the default shard capacity.
func BenchmarkBloom_New(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := bloom.New[uint64](10_240); err != nil {
			b.Fatal(err)
		}
	}
}
