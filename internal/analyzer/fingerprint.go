package analyzer

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Fingerprint is a 32-bit hash of the frame's blue channel subsampled every
// 64 pixels (per spec.md §4.2). It short-circuits duplicate analysis of
// physically identical frames and must never be used as a persisted
// identity.
func Fingerprint(frame model.Frame) uint32 {
	mat := frame.Mat
	rows, cols := mat.Rows(), mat.Cols()
	h := fnv.New32a()
	buf := make([]byte, 1)
	for r := 0; r < rows; r += 64 {
		for c := 0; c < cols; c += 64 {
			buf[0] = mat.GetVecbAt(r, c)[0]
			h.Write(buf)
		}
	}
	return h.Sum32()
}

// resultCache memoizes arbitrary extraction results keyed by (fingerprint,
// operation name), bounded to a small number of entries since its only job
// is to dedupe back-to-back calls against the same still frame, not to act
// as a general-purpose cache.
type resultCache struct {
	mu      sync.Mutex
	cap     int
	order   []string
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value any
	ok    bool
}

func newResultCache(capacity int) *resultCache {
	return &resultCache{cap: capacity, entries: map[string]cacheEntry{}}
}

func cacheKey(fp uint32, op string) string {
	return fmt.Sprintf("%d:%s", fp, op)
}

func (c *resultCache) get(fp uint32, op string) (any, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[cacheKey(fp, op)]
	return e.value, e.ok, found
}

func (c *resultCache) put(fp uint32, op string, value any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(fp, op)
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
		if len(c.order) > c.cap {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = cacheEntry{value: value, ok: ok}
}
