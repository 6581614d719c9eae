package container

import "sync/atomic"

// flag is a one-way switch used to close scopes exactly once.
type flag struct {
	atomic.Bool
}

func newFlag() *flag {
	return &flag{}
}

func (flg *flag) enabled() bool {
	return flg.Load()
}

// enable reports whether this call switched the flag on.
func (flg *flag) enable() (swapped bool) {
	return flg.CompareAndSwap(false, true)
}
