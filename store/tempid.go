package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TempIDGen issues temporary ids for optimistic sends. Ids are unique within
// the process: a millisecond timestamp plus a per-millisecond counter plus a
// random suffix. They exist only for reconciliation and are never shown to
// users or forwarded to other clients.
type TempIDGen struct {
	mu     sync.Mutex
	lastMs int64
	seq    uint32
}

// NewTempIDGen creates a new temp-id generator.
func NewTempIDGen() *TempIDGen {
	return &TempIDGen{}
}

// Next returns a fresh temp id, e.g. "tmp-1735689600123-0-1f3870be".
func (g *TempIDGen) Next() string {
	g.mu.Lock()
	now := time.Now().UnixMilli()
	if now == g.lastMs {
		g.seq++
	} else {
		g.lastMs = now
		g.seq = 0
	}
	seq := g.seq
	g.mu.Unlock()

	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("tmp-%d-%d-%s", now, seq, suffix)
}
