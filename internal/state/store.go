package state

import (
	"sync"

	"github.com/any-hub/filecache/internal/resource"
)

// Snapshot 是 ResultMap 在某一时刻的只读拷贝。
type Snapshot map[resource.Identifier]Outcome

// Store 持有 ResultMap；同一时间只有一个写操作，读操作拿到的是拷贝。
type Store struct {
	mu      sync.RWMutex
	entries map[resource.Identifier]Outcome

	subMu  sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	ch chan Snapshot
}

// NewStore 返回空的 ResultMap。
func NewStore() *Store {
	return &Store{
		entries: make(map[resource.Identifier]Outcome),
		subs:    make(map[int]*subscriber),
	}
}

// Apply upserts the outcome for id and publishes the new snapshot.
func (s *Store) Apply(id resource.Identifier, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = outcome
	s.publishLocked(s.copyLocked())
}

// Update 在写锁内把当前结果交给 fn，由 fn 决定是否替换。fn 返回 false 时
// 不写入也不推送。fn 运行期间持有写锁，不能再调用 Store 的方法。
func (s *Store) Update(id resource.Identifier, fn func(current Outcome, ok bool) (Outcome, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[id]
	next, write := fn(current, ok)
	if !write {
		return false
	}
	s.entries[id] = next
	s.publishLocked(s.copyLocked())
	return true
}

// Reset 清空 ResultMap，用于模块卸载。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[resource.Identifier]Outcome)
	s.publishLocked(Snapshot{})
}

// Snapshot 返回当前 map 的拷贝。
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Lookup 返回单个资源的结果。
func (s *Store) Lookup(id resource.Identifier) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outcome, ok := s.entries[id]
	return outcome, ok
}

// Len 返回条目数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers an observer. The channel first receives the current
// snapshot, then the latest snapshot after each mutation; a subscriber that
// falls behind only ever sees the newest pending snapshot. cancel closes the
// channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	s.mu.RLock()
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.offer(s.copyLocked())
	s.subMu.Unlock()
	s.mu.RUnlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(sub.ch)
			s.subMu.Unlock()
		})
	}
	return sub.ch, cancel
}

// publishLocked 在持有 mu 时推送，保证订阅方看到的快照顺序与写入顺序一致。
func (s *Store) publishLocked(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		sub.offer(snap)
	}
}

// offer 替换尚未被消费的旧快照，永不阻塞写入方。调用方需持有 subMu。
func (sub *subscriber) offer(snap Snapshot) {
	for {
		select {
		case sub.ch <- snap:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func (s *Store) copyLocked() Snapshot {
	out := make(Snapshot, len(s.entries))
	for id, outcome := range s.entries {
		out[id] = outcome
	}
	return out
}
