package store

const (
	dedupCapacity   = 1000
	dedupEvictBatch = dedupCapacity / 5
)

// DedupWindow remembers recently seen server message ids so redelivered
// messages (live push racing history replay, server retries) can be dropped.
// It holds at most dedupCapacity ids; when full, the oldest dedupEvictBatch
// entries are evicted in one step to amortise eviction cost. An id older
// than the eviction horizon can therefore be treated as new again — bounded
// memory is preferred over perfect historical dedup.
type DedupWindow struct {
	ids   map[string]struct{}
	order []string
}

// NewDedupWindow creates an empty dedup window.
func NewDedupWindow() *DedupWindow {
	return &DedupWindow{
		ids:   make(map[string]struct{}, dedupCapacity),
		order: make([]string, 0, dedupCapacity),
	}
}

// Seen reports whether id has already been recorded.
func (d *DedupWindow) Seen(id string) bool {
	_, ok := d.ids[id]
	return ok
}

// Record adds id to the window, evicting the oldest batch if at capacity.
// Recording an already-seen id is a no-op.
func (d *DedupWindow) Record(id string) {
	if id == "" {
		return
	}
	if _, ok := d.ids[id]; ok {
		return
	}

	if len(d.order) >= dedupCapacity {
		for _, old := range d.order[:dedupEvictBatch] {
			delete(d.ids, old)
		}
		d.order = append(d.order[:0], d.order[dedupEvictBatch:]...)
	}

	d.ids[id] = struct{}{}
	d.order = append(d.order, id)
}

// Reset discards all tracked ids.
func (d *DedupWindow) Reset() {
	d.ids = make(map[string]struct{}, dedupCapacity)
	d.order = d.order[:0]
}

// Len returns the current number of tracked ids.
func (d *DedupWindow) Len() int {
	return len(d.order)
}
