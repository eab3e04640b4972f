package attempt

// Cycle yields its items in order and wraps around indefinitely. A cycle
// built without items yields its fallback value.
type Cycle struct {
	items []string
	next  int
}

func NewCycle(items []string, fallback string) *Cycle {
	if len(items) == 0 {
		items = []string{fallback}
	}

	return &Cycle{items: items}
}

func (c *Cycle) Next() string {
	item := c.items[c.next]

	c.next = (c.next + 1) % len(c.items)

	return item
}

func (c *Cycle) Len() int {
	return len(c.items)
}
