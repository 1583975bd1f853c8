package jobstore

// logRing is a fixed-capacity ring of log lines. Pushing past capacity drops
// the oldest line.
type logRing struct {
	buf  []string
	head int // next write position
	size int
}

func newLogRing(capacity int) *logRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &logRing{buf: make([]string, capacity)}
}

func (r *logRing) push(line string) {
	r.buf[r.head] = line
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// snapshot returns the retained lines newest first.
func (r *logRing) snapshot() []string {
	out := make([]string, 0, r.size)
	for i := 1; i <= r.size; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
