package blocking

import "time"

const (
	defaultBackoffBase = 500 * time.Microsecond
	defaultBackoffMax  = 100 * time.Millisecond
)

// Backoff is the fallback used when the wrapped stream cannot wait for
// readiness. Sleeps grow linearly in blocks: block n performs n sleeps of
// base*n, capped at max. The zero value is ready to use.
type Backoff struct {
	n, i      int
	base, max time.Duration
	sleep     func(time.Duration)
}

func (b *Backoff) Wait() {
	d := b.Duration()
	if b.sleep != nil {
		b.sleep(d)
	} else {
		time.Sleep(d)
	}
	if b.n == 0 {
		b.n = 1
	}
	b.i++
	if b.i >= b.n {
		b.i = 0
		b.n++
	}
}

// Duration is the length of the next sleep.
func (b *Backoff) Duration() time.Duration {
	n := b.n
	if n == 0 {
		n = 1
	}
	base := b.base
	if base <= 0 {
		base = defaultBackoffBase
	}
	max := b.max
	if max <= 0 {
		max = defaultBackoffMax
	}
	d := time.Duration(n) * base
	if d > max {
		return max
	}
	return d
}

func (b *Backoff) Reset() { b.n, b.i = 0, 0 }
