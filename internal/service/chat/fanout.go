package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/hwpark/chatbot/backend/internal/service/ai"
)

const branchBuffer = 16

// StreamOpener starts the upstream streaming call. The fanout invokes it
// exactly once, after both consumers have attached.
type StreamOpener func(ctx context.Context) (ai.ChunkStream, error)

// Fanout turns one at-most-once-consumable upstream chunk stream into two
// independent branches: delivery (paced by the caller's transport) and
// accumulation (buffers every chunk for durable storage). A single producer
// reads the upstream stream once and feeds each branch through its own
// unbounded queue, so neither branch can stall or corrupt the other. The
// upstream read runs to completion even if the delivery consumer abandons
// its branch.
type Fanout struct {
	open StreamOpener

	delivery chan string
	accum    chan string
	attach   chan struct{}

	dropOnce sync.Once
	dropped  chan struct{}

	mu  sync.Mutex
	err error
}

// NewFanout prepares a fanout over the given opener. Run must be started
// for chunks to flow.
func NewFanout(open StreamOpener) *Fanout {
	return &Fanout{
		open:     open,
		delivery: make(chan string, branchBuffer),
		accum:    make(chan string, branchBuffer),
		attach:   make(chan struct{}, 2),
		dropped:  make(chan struct{}),
	}
}

// Delivery registers the transport consumer and returns its branch. The
// channel closes when the upstream stream ends or fails.
func (f *Fanout) Delivery() <-chan string {
	f.attach <- struct{}{}
	return f.delivery
}

// Accumulation registers the accumulation consumer and returns its branch.
func (f *Fanout) Accumulation() <-chan string {
	f.attach <- struct{}{}
	return f.accum
}

// AbandonDelivery releases the delivery branch after a consumer-side
// disconnect. Remaining chunks for that branch are discarded; accumulation
// is unaffected.
func (f *Fanout) AbandonDelivery() {
	f.dropOnce.Do(func() { close(f.dropped) })
}

// Err reports why the stream terminated early. It is meaningful once the
// branch channels have closed; a normal end of stream leaves it nil.
func (f *Fanout) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Fanout) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
	}
}

// Run consumes the upstream stream and feeds both branches. The upstream
// call is not opened until both consumers have attached, so neither branch
// can miss a prefix of chunks.
func (f *Fanout) Run(ctx context.Context) {
	deliveryQ := newChunkQueue()
	accumQ := newChunkQueue()

	var forwarders sync.WaitGroup
	forwarders.Add(2)
	go func() {
		defer forwarders.Done()
		forward(deliveryQ, f.delivery, f.dropped)
	}()
	go func() {
		defer forwarders.Done()
		forward(accumQ, f.accum, nil)
	}()

	f.produce(ctx, deliveryQ, accumQ)

	deliveryQ.closeQueue()
	accumQ.closeQueue()
	forwarders.Wait()
}

func (f *Fanout) produce(ctx context.Context, queues ...*chunkQueue) {
	// Start barrier: wait for both consumers. A delivery branch abandoned
	// before attaching counts as attached so accumulation can still run.
	dropped := f.dropped
	for attached := 0; attached < 2; {
		select {
		case <-f.attach:
			attached++
		case <-dropped:
			dropped = nil
			attached++
		case <-ctx.Done():
			f.setErr(ctx.Err())
			return
		}
	}

	stream, err := f.open(ctx)
	if err != nil {
		f.setErr(err)
		return
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			f.setErr(err)
			return
		}
		if delta == "" {
			continue
		}
		for _, q := range queues {
			q.push(delta)
		}
	}
}

// forward drains a queue into a consumer channel, closing the channel when
// the queue is exhausted. When dropped fires the remaining chunks for this
// branch are discarded.
func forward(q *chunkQueue, out chan<- string, dropped <-chan struct{}) {
	defer close(out)
	for {
		delta, ok := q.pop()
		if !ok {
			return
		}
		if dropped == nil {
			out <- delta
			continue
		}
		select {
		case out <- delta:
		case <-dropped:
			return
		}
	}
}

// chunkQueue is an unbounded FIFO between the producer and one branch. The
// producer must never block on a slow branch, so pushes always succeed.
type chunkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	closed bool
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *chunkQueue) push(delta string) {
	q.mu.Lock()
	q.items = append(q.items, delta)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *chunkQueue) closeQueue() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until an item is available or the queue is closed and drained.
func (q *chunkQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	delta := q.items[0]
	q.items = q.items[1:]
	return delta, true
}
