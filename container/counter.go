package container

import "sync/atomic"

// counter tracks the number of open scopes of a container.
type counter struct {
	atomic.Int64
}

func newCounter() *counter {
	return &counter{}
}

func (c *counter) increment() int64 {
	return c.Add(1)
}

func (c *counter) decrement() int64 {
	return c.Add(-1)
}

func (c *counter) value() int {
	return int(c.Load())
}
