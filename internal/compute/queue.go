package compute

import (
	"errors"
	"sync"
)

// ErrQueueClosed reports a submission against a queue that has shut down.
var ErrQueueClosed = errors.New("compute: queue closed")

type command struct {
	stage string
	fn    func() error
	done  chan struct{}
}

// Queue executes submitted commands one at a time on a dispatcher goroutine,
// strictly in submission order. Within one command a backend may fan cells
// out across workers; the queue never overlaps two commands, which is what
// makes one pass's writes visible to the next pass's reads.
type Queue struct {
	mu     sync.Mutex
	cmds   chan command
	closed bool

	drained chan struct{}
	onError func(stage string, err error)
}

const defaultQueueDepth = 256

// NewQueue starts the dispatcher. depth bounds how many commands may be
// pending before Submit blocks; depth <= 0 selects a default. onError
// receives failures from executed commands and may be nil.
func NewQueue(depth int, onError func(stage string, err error)) *Queue {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	q := &Queue{
		cmds:    make(chan command, depth),
		drained: make(chan struct{}),
		onError: onError,
	}
	go q.dispatch()
	return q
}

func (q *Queue) dispatch() {
	for c := range q.cmds {
		if c.fn != nil {
			if err := c.fn(); err != nil && q.onError != nil {
				q.onError(c.stage, err)
			}
		}
		if c.done != nil {
			close(c.done)
		}
	}
	close(q.drained)
}

// Submit enqueues a command and returns without waiting for it to run. It
// blocks only while the queue is at capacity.
func (q *Queue) Submit(stage string, fn func() error) error {
	return q.push(command{stage: stage, fn: fn})
}

// Fence returns a channel that closes once every command submitted before
// the call has finished executing. On a closed queue the channel is already
// closed.
func (q *Queue) Fence() <-chan struct{} {
	done := make(chan struct{})
	if err := q.push(command{stage: "fence", done: done}); err != nil {
		close(done)
	}
	return done
}

func (q *Queue) push(c command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.cmds <- c
	return nil
}

// Close stops accepting commands and waits for the pending ones to finish.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.cmds)
	}
	q.mu.Unlock()
	<-q.drained
}
