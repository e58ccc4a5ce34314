// ABOUTME: TTL cache of recently routed chat lines, keyed by message content.
// ABOUTME: Guards against the game mod double-writing an event around save/load.

package router

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/borelabs/bore-bridge/internal/watcher"
)

type seenEntry struct {
	at   time.Time
	elem *list.Element
}

// seenCache is a size-bounded TTL set. Oldest keys evict first; expired
// keys are swept lazily on insert, so no background goroutine is needed.
type seenCache struct {
	mu      sync.Mutex
	entries map[string]*seenEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
}

func newSeenCache(ttl time.Duration, maxSize int) *seenCache {
	return &seenCache{
		entries: make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// checkAndMark reports whether key was seen within the TTL, marking it
// either way. The check and the mark are one critical section.
func (c *seenCache) checkAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.entries[key]; ok {
		dup := now.Sub(entry.at) < c.ttl
		entry.at = now
		c.order.MoveToBack(entry.elem)
		return dup
	}

	c.sweep(now)
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &seenEntry{at: now, elem: c.order.PushBack(key)}
	return false
}

// sweep drops expired keys from the front of the insertion order.
func (c *seenCache) sweep(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key := front.Value.(string)
		if now.Sub(c.entries[key].at) <= c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// messageKey flattens a chat line into a dedupe key.
func messageKey(msg watcher.Message) string {
	return strings.Join([]string{
		strconv.Itoa(msg.PlayerIndex),
		msg.PlayerName,
		msg.Destination,
		msg.Body,
	}, "\x1f")
}
