package frame

import (
	"errors"
	"sync"
)

var ErrElementNotFound = errors.New("element not found")

// Container is the mount point that transports attach their elements to.
// The orchestrator owns it exclusively for the duration of a session.
type Container interface {
	// Width is the rendered width in CSS pixels, used to size the challenge window.
	Width() int
	Append(el *Element) error
	Remove(name string) error
}

// MemoryContainer is a thread-safe in-memory Container for headless hosts and tests
type MemoryContainer struct {
	mu       sync.RWMutex
	width    int
	elements []*Element
}

var _ Container = (*MemoryContainer)(nil)

// NewMemoryContainer creates an empty container with the given width
func NewMemoryContainer(width int) *MemoryContainer {
	return &MemoryContainer{
		width: width,
	}
}

func (c *MemoryContainer) Width() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width
}

// SetWidth resizes the container
func (c *MemoryContainer) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
}

// Append attaches an element after the existing ones
func (c *MemoryContainer) Append(el *Element) error {
	if el == nil {
		return errors.New("element cannot be nil")
	}
	if el.Name == "" {
		return errors.New("element name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.elements {
		if existing.Name == el.Name {
			return errors.New("element already attached")
		}
	}
	c.elements = append(c.elements, el)
	return nil
}

// Remove detaches an element by name
func (c *MemoryContainer) Remove(name string) error {
	if name == "" {
		return errors.New("element name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.elements {
		if existing.Name == name {
			c.elements = append(c.elements[:i], c.elements[i+1:]...)
			return nil
		}
	}
	return ErrElementNotFound
}

// Get retrieves an attached element by name
func (c *MemoryContainer) Get(name string) (*Element, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, existing := range c.elements {
		if existing.Name == name {
			return existing, nil
		}
	}
	return nil, ErrElementNotFound
}

// Elements returns the attached elements in attach order
func (c *MemoryContainer) Elements() []*Element {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elements := make([]*Element, len(c.elements))
	copy(elements, c.elements)
	return elements
}

// Len returns the number of attached elements
func (c *MemoryContainer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}
