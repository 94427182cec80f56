package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// HandleFunc processes one update
type HandleFunc func(ctx context.Context, update tgbotapi.Update)

// Dispatcher runs updates of one user in arrival order while different
// users are served concurrently. A user's worker exits when its queue
// drains.
type Dispatcher struct {
	handle HandleFunc

	mu     sync.Mutex
	queues map[int64]*userQueue
	wg     sync.WaitGroup
}

type userQueue struct {
	pending []tgbotapi.Update
}

// NewDispatcher creates a dispatcher around handle
func NewDispatcher(handle HandleFunc) *Dispatcher {
	return &Dispatcher{handle: handle, queues: make(map[int64]*userQueue)}
}

// Dispatch queues the update for userID and starts a worker when none runs
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, update tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, running := d.queues[userID]
	if !running {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.pending = append(q.pending, update)
	if running {
		return
	}

	d.wg.Add(1)
	go d.work(ctx, userID, q)
}

func (d *Dispatcher) work(ctx context.Context, userID int64, q *userQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		update := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.handle(ctx, update)
	}
}

// Wait blocks until every queued update has been handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}
