package frame

import (
	"net/url"
	"sync"
)

// Kind distinguishes the two element types a transport attaches to a container.
type Kind string

const (
	// KindSurface is the isolated surface the submission is loaded into (an iframe in a browser).
	KindSurface Kind = "surface"
	// KindForm is the single-use form that posts the encoded payload.
	KindForm Kind = "form"
)

// Document is what a surface loaded as the result of a form submission.
type Document struct {
	URL         string // Final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Element is a surface or a form attached to a Container.
// Form fields are fixed before the element is attached; only the surface
// document changes afterwards.
type Element struct {
	Name    string // Unique element name (UUID)
	Kind    Kind
	Visible bool

	// Form only
	Action string     // Target URL of the submission
	Method string     // HTTP method, POST for both sub-flows
	Target string     // Name of the surface the form submits into
	Fields url.Values // Hidden inputs

	mu       sync.RWMutex
	document *Document
	err      error
}

// Document returns the loaded document, nil until the surface has loaded.
func (e *Element) Document() *Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.document
}

// Err returns the load failure of the surface, if any.
func (e *Element) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

func (e *Element) load(doc *Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.document = doc
}

func (e *Element) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}
