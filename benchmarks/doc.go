// Package benchmarks holds cross-package benchmarks for the hot paths:
// filter probes, resequencer inserts, routing and journal appends.
//
//	go test -bench=. -benchmem ./benchmarks/
package benchmarks
