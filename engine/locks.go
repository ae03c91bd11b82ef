package engine

import "sync"

// flowLocks hands out one mutex per flow id so every load-mutate-save cycle
// on a flow is serialized within this process. Entries are tiny and never
// reclaimed; the flow population of a single node stays well within that.
type flowLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFlowLocks() *flowLocks {
	return &flowLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *flowLocks) get(flowId string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[flowId]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[flowId] = lock
	}
	return lock
}
