package eventloop

import (
	"sync"

	"github.com/eapache/queue"
)

// ingress is the FIFO queue of tasks submitted to the loop, from any
// goroutine. The underlying ring buffer is not thread-safe, so it is guarded
// by a mutex, which is only held to push or pop.
type ingress struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newIngress() *ingress {
	return &ingress{q: queue.New()}
}

func (x *ingress) push(fn func()) {
	x.mu.Lock()
	x.q.Add(fn)
	x.mu.Unlock()
}

// popBatch moves up to len(buf) tasks into buf, returning the count.
func (x *ingress) popBatch(buf []func()) (n int) {
	x.mu.Lock()
	for n < len(buf) && x.q.Length() != 0 {
		buf[n] = x.q.Remove().(func())
		n++
	}
	x.mu.Unlock()
	return
}

func (x *ingress) length() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.q.Length()
}
