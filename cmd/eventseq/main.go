// Command eventseq reorders a stream of versioned events per aggregate.
//
// Input is JSON lines on stdin:
//
//	{"aggregate_id": "order-1", "version": 3, "type": "order.shipped", "payload": {...}}
//
// Accepted events are written to stdout in the same shape, in version order
// for each aggregate. Duplicates are dropped and futures are held until
// their gap closes. Whatever is still buffered at EOF is not emitted; use
// -dump to see it.
//
// Settings come from -config (YAML or JSON) overlaid with EVENTSEQ_*
// environment variables, e.g. EVENTSEQ_MAX_PENDING=1000. String values may
// reference the environment as ${NAME}:
//
//	journal: ${STATE_DIR}/eventseq.db
//	journal_timeout: 2s
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "eventseq:", err)
		os.Exit(1)
	}
}
