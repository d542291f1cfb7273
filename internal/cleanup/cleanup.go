// Package cleanup provides a scoped acquire/release helper adapted
// from gvisor's pkg/cleanup: register a rollback function at the point
// a resource is acquired, defer its Clean, and call Release once the
// surrounding operation has fully succeeded.
package cleanup

// Cleanup runs a function unless released. The zero value is not
// usable; construct with Make.
type Cleanup struct {
	fn func()
}

// Make returns a Cleanup that will invoke fn on Clean, unless Release
// is called first.
func Make(fn func()) Cleanup {
	return Cleanup{fn: fn}
}

// Clean invokes the rollback function if it has not been released.
func (c *Cleanup) Clean() {
	if c.fn != nil {
		c.fn()
		c.fn = nil
	}
}

// Release disarms the Cleanup; subsequent Clean calls are no-ops.
func (c *Cleanup) Release() {
	c.fn = nil
}
