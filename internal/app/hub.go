package app

import (
	"sync"

	"safety-stories-service/internal/domain"
)

// Hub fans out story leaderboard snapshots to live subscribers. Snapshots are
// ordered by the newest write they contain, so one read before a concurrent
// submission can never overwrite one read after it.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.StoryLeaderboard]struct{}
	// lastSeq is the highest entry Seq published per story.
	lastSeq map[string]int64
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan domain.StoryLeaderboard]struct{}),
		lastSeq:     make(map[string]int64),
	}
}

// Subscribe registers a subscriber for storyID and queues initial as its first
// message. The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(storyID string, initial domain.StoryLeaderboard) (<-chan domain.StoryLeaderboard, func()) {
	ch := make(chan domain.StoryLeaderboard, 8)

	h.mu.Lock()
	subs, ok := h.subscribers[storyID]
	if !ok {
		subs = make(map[chan domain.StoryLeaderboard]struct{})
		h.subscribers[storyID] = subs
	}
	subs[ch] = struct{}{}
	ch <- initial
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[storyID]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, storyID)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of its story without blocking. A
// snapshot no newer than the last one published for the story is dropped.
func (h *Hub) Publish(lb domain.StoryLeaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seq := newestSeq(lb)
	if last, ok := h.lastSeq[lb.StoryID]; ok && seq <= last {
		return
	}
	h.lastSeq[lb.StoryID] = seq
	h.deliver(lb)
}

// Reset delivers lb unconditionally and makes it the ordering baseline. Used
// when rows were removed and the newest Seq may have gone down.
func (h *Hub) Reset(lb domain.StoryLeaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSeq[lb.StoryID] = newestSeq(lb)
	h.deliver(lb)
}

func (h *Hub) deliver(lb domain.StoryLeaderboard) {
	for ch := range h.subscribers[lb.StoryID] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its oldest snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers reports how many live subscribers a story has.
func (h *Hub) Subscribers(storyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[storyID])
}

func newestSeq(lb domain.StoryLeaderboard) int64 {
	var seq int64
	for _, e := range lb.Entries {
		if e.Seq > seq {
			seq = e.Seq
		}
	}
	return seq
}
