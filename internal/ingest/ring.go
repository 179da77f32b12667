package ingest

import "PortPulse/internal/domain/models"

// ring is a fixed-capacity FIFO buffer of validated snapshots. Inserting
// beyond capacity evicts the oldest entry.
type ring struct {
	buf   []models.ValidatedSnapshot
	start int
	count int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{buf: make([]models.ValidatedSnapshot, capacity)}
}

func (r *ring) push(s models.ValidatedSnapshot) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// items returns the buffered snapshots, oldest first.
func (r *ring) items() []models.ValidatedSnapshot {
	out := make([]models.ValidatedSnapshot, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
