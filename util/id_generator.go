package util

import "sync/atomic"

// IDGenerator hands out ids starting at 1. The zero value is ready to use
// and safe for concurrent use.
type IDGenerator struct {
	v uint64
}

func (idg *IDGenerator) Next() uint64 {
	return atomic.AddUint64(&idg.v, 1)
}

// Last returns the most recently handed out id, or 0.
func (idg *IDGenerator) Last() uint64 {
	return atomic.LoadUint64(&idg.v)
}
