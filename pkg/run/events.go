// SPDX-License-Identifier: Apache-2.0

package run

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/xataio/hwbench/pkg/bench"
)

// eventQueue delivers progress events without ever blocking the producer.
// When the channel is full the oldest undelivered event is discarded.
// There is a single producer, the run goroutine.
type eventQueue struct {
	ch       chan bench.ProgressEvent
	listener func(bench.ProgressEvent)
	limiter  *rate.Limiter
	dropped  atomic.Int64
}

func newEventQueue(size int, interval time.Duration, listener func(bench.ProgressEvent)) *eventQueue {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &eventQueue{
		ch:       make(chan bench.ProgressEvent, size),
		listener: listener,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// progress sends an intra-test event unless it arrives faster than the
// configured interval. Completion of a phase is always sent.
func (q *eventQueue) progress(ev bench.ProgressEvent) {
	if ev.Fraction < 1 && !q.limiter.Allow() {
		return
	}
	q.push(ev)
}

func (q *eventQueue) push(ev bench.ProgressEvent) {
	if q.listener != nil {
		q.listener(ev)
	}
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

func (q *eventQueue) close() {
	close(q.ch)
}
