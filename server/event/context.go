package event

// Context is passed to handlers of events that may be cancelled.
type Context struct {
	cancelled bool
}

// C returns a new Context.
func C() *Context {
	return &Context{}
}

// Cancel cancels the event. The action that caused the event is not
// performed.
func (c *Context) Cancel() {
	c.cancelled = true
}

// Cancelled reports if Cancel was called on the Context.
func (c *Context) Cancelled() bool {
	return c.cancelled
}
