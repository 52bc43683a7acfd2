package atomic

import "sync/atomic"

// Bool is a flag that may be set by one goroutine and observed by another,
// e.g. a close that must unblock a wait loop running elsewhere.
type Bool struct {
	v uint32
}

func (b *Bool) Get() bool {
	return atomic.LoadUint32(&b.v) == 1
}

func (b *Bool) Set(v bool) {
	atomic.StoreUint32(&b.v, toUint32(v))
}

// CompareAndSwap sets the flag to new if it currently equals old.
func (b *Bool) CompareAndSwap(old, new bool) bool {
	return atomic.CompareAndSwapUint32(&b.v, toUint32(old), toUint32(new))
}

func toUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
