package chart

import "sync"

// Sizable is a child of a Container.
type Sizable interface {
	SetSize(width, height float64)
	// Ready reports whether the child can take a size yet.
	Ready() bool
}

// Container assigns its size to every child. Children that are not ready
// when a size is assigned get it on the next Flush after they become ready.
type Container struct {
	mu       sync.Mutex
	width    float64
	height   float64
	sized    bool
	children []Sizable
	pending  map[Sizable]bool
}

// NewContainer returns an empty container with no size.
func NewContainer() *Container {
	return &Container{pending: make(map[Sizable]bool)}
}

// Add appends a child and sizes it if possible.
func (c *Container) Add(child Sizable) {
	c.mu.Lock()
	c.children = append(c.children, child)
	c.mu.Unlock()
	c.assign(child)
}

// Remove drops a child. Its size is left as it was.
func (c *Container) Remove(child Sizable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, child)
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// Len is the number of children.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.children)
}

// Resize sets the container size and assigns it to every ready child.
func (c *Container) Resize(width, height float64) {
	c.mu.Lock()
	c.width, c.height, c.sized = width, height, true
	children := append([]Sizable(nil), c.children...)
	c.mu.Unlock()

	for _, ch := range children {
		c.assign(ch)
	}
}

// Flush sizes the children that were not ready at the last Resize or Add.
// It returns how many are still waiting.
func (c *Container) Flush() int {
	c.mu.Lock()
	waiting := make([]Sizable, 0, len(c.pending))
	for ch := range c.pending {
		waiting = append(waiting, ch)
	}
	c.mu.Unlock()

	for _, ch := range waiting {
		c.assign(ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Size returns the last assigned size.
func (c *Container) Size() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *Container) assign(child Sizable) {
	c.mu.Lock()
	if !c.sized {
		c.mu.Unlock()
		return
	}
	w, h := c.width, c.height
	if !child.Ready() {
		c.pending[child] = true
		c.mu.Unlock()
		return
	}
	delete(c.pending, child)
	c.mu.Unlock()

	child.SetSize(w, h)
}
