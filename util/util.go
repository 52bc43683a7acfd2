package util

// AsyncNotify wakes a waiter on ch without blocking when nobody listens.
func AsyncNotify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
