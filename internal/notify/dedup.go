package notify

import "sync"

const defaultDedupCapacity = 10000

// Dedup remembers which alerts were already sent. It holds at most capacity
// fingerprints; on overflow the oldest half is forgotten.
type Dedup struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

// NewDedup creates a Dedup bounded to capacity fingerprints
func NewDedup(capacity int) *Dedup {
	if capacity < 2 {
		capacity = defaultDedupCapacity
	}
	return &Dedup{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Fingerprint identifies one alert for one tenant
func Fingerprint(tenantID, findingID string) string {
	return tenantID + "|" + findingID
}

// Seen reports whether the fingerprint was recorded
func (d *Dedup) Seen(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[fp]
	return ok
}

// Mark records fingerprints, evicting the oldest half first when full
func (d *Dedup) Mark(fps ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, fp := range fps {
		if _, ok := d.seen[fp]; ok {
			continue
		}
		if len(d.order) >= d.capacity {
			d.evictOldestHalf()
		}
		d.seen[fp] = struct{}{}
		d.order = append(d.order, fp)
	}
}

// Len returns the number of remembered fingerprints
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// evictOldestHalf must be called with d.mu held
func (d *Dedup) evictOldestHalf() {
	half := len(d.order) / 2
	for _, fp := range d.order[:half] {
		delete(d.seen, fp)
	}
	kept := make([]string, len(d.order)-half, d.capacity)
	copy(kept, d.order[half:])
	d.order = kept
}
