// Package frame submits a sub-flow payload to a remote endpoint through an
// isolated surface attached to a mount point, and waits for it to load.
//
// Both 3DS sub-flows use it: the DS Method posts threeDSMethodData into a
// hidden surface, the challenge posts creq into a visible one.
package frame

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-threedsecure/internal/errors"
	"github.com/jrsteele09/go-threedsecure/payload"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Target describes one submission.
type Target struct {
	URL       string // Endpoint the form posts to
	FieldName string // Name of the single hidden field
	Payload   any    // JSON record, encoded with payload.Encode
	Visible   bool   // Whether the surface is shown to the cardholder
}

// Transport performs at most one submission per instance. A second Execute
// after a submission is a successful no-op, which absorbs duplicated
// trigger events from the Authentication Service.
type Transport struct {
	name      string
	navigator Navigator
	hooks     Hooks
	logger    zerolog.Logger

	mu        sync.Mutex
	submitted bool
	container Container
	surface   *Element
	form      *Element
}

// TransportOption defines a function type to modify the Transport instance.
type TransportOption func(*Transport)

// WithNavigator replaces the default HTTP navigator
func WithNavigator(navigator Navigator) TransportOption {
	return func(t *Transport) {
		t.navigator = navigator
	}
}

// WithHooks sets the lifecycle hooks
func WithHooks(hooks Hooks) TransportOption {
	return func(t *Transport) {
		t.hooks = hooks
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport; name identifies it in logs and errors.
func NewTransport(name string, options ...TransportOption) *Transport {
	t := &Transport{
		name:   name,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.navigator == nil {
		t.navigator = NewHTTPNavigator(nil)
	}
	t.logger = t.logger.With().Str("transport", name).Logger()
	return t
}

// Execute attaches a surface and a form to container, posts the encoded
// payload and waits for the surface to load.
func (t *Transport) Execute(ctx context.Context, target Target, container Container) error {
	if strings.TrimSpace(target.URL) == "" {
		return errors.WithKind(threedsmodel.ErrConfiguration, nil, "[%s.Execute] url is required", t.name)
	}
	if strings.TrimSpace(target.FieldName) == "" {
		return errors.WithKind(threedsmodel.ErrConfiguration, nil, "[%s.Execute] field name is required", t.name)
	}
	if container == nil {
		return errors.WithKind(threedsmodel.ErrConfiguration, nil, "[%s.Execute] container is required", t.name)
	}

	t.mu.Lock()
	if t.submitted {
		t.mu.Unlock()
		t.logger.Debug().Msg("already submitted, ignoring duplicate trigger")
		return nil
	}

	encoded, err := payload.Encode(target.Payload)
	if err != nil {
		t.mu.Unlock()
		return errors.WithKind(threedsmodel.ErrConfiguration, err, "[%s.Execute] encode payload", t.name)
	}

	surface := &Element{
		Name:    uuid.NewString(),
		Kind:    KindSurface,
		Visible: target.Visible,
	}
	form := &Element{
		Name:   uuid.NewString(),
		Kind:   KindForm,
		Action: target.URL,
		Method: http.MethodPost,
		Target: surface.Name,
		Fields: url.Values{target.FieldName: []string{encoded}},
	}

	t.container = container
	if err := container.Append(form); err != nil {
		t.mu.Unlock()
		return errors.WithKind(threedsmodel.ErrTransport, err, "[%s.Execute] attach form", t.name)
	}
	t.form = form
	if err := container.Append(surface); err != nil {
		removed := t.removeLocked()
		t.mu.Unlock()
		t.fireRemoved(removed)
		return errors.WithKind(threedsmodel.ErrTransport, err, "[%s.Execute] attach surface", t.name)
	}
	t.surface = surface
	t.submitted = true
	t.mu.Unlock()

	// hooks run unlocked so they may call back into the transport
	t.hooks.created(t.logger, surface)
	t.hooks.attached(t.logger, surface)

	t.logger.Debug().Str("url", target.URL).Str("field", target.FieldName).Msg("submitting")
	doc, err := t.submit(ctx, form)
	if err != nil {
		surface.fail(err)
		t.hooks.errored(t.logger, surface, err)
		t.logger.Err(err).Msg("surface failed to load")
		return errors.WithKind(threedsmodel.ErrTransport, err, "[%s.Execute] submit", t.name)
	}

	surface.load(doc)
	t.hooks.loaded(t.logger, surface)
	t.logger.Debug().Int("status", doc.StatusCode).Msg("surface loaded")
	return nil
}

type submission struct {
	doc *Document
	err error
}

// submit abandons the navigation once ctx is done, even when the navigator
// keeps waiting on its own.
func (t *Transport) submit(ctx context.Context, form *Element) (*Document, error) {
	done := make(chan submission, 1)
	go func() {
		doc, err := t.navigator.Submit(ctx, form)
		done <- submission{doc: doc, err: err}
	}()

	select {
	case res := <-done:
		return res.doc, res.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Submitted reports whether this instance already performed its submission.
func (t *Transport) Submitted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitted
}

// Surface returns the attached surface, nil before Execute or after Clean.
func (t *Transport) Surface() *Element {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}

// Clean detaches the surface and the form if present. It never fails:
// teardown errors are logged and swallowed.
func (t *Transport) Clean() {
	t.mu.Lock()
	t.logger.Debug().Msg("clean")
	removed := t.removeLocked()
	t.mu.Unlock()
	t.fireRemoved(removed)
}

// removeLocked detaches the elements and returns the ones actually removed.
func (t *Transport) removeLocked() []*Element {
	if t.container == nil {
		return nil
	}
	var removed []*Element
	for _, el := range []*Element{t.surface, t.form} {
		if el == nil {
			continue
		}
		if t.remove(el) {
			removed = append(removed, el)
		}
	}
	t.surface = nil
	t.form = nil
	return removed
}

func (t *Transport) remove(el *Element) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("element", el.Name).Msg("clean - remove panicked")
			ok = false
		}
	}()
	if err := t.container.Remove(el.Name); err != nil {
		t.logger.Err(err).Str("element", el.Name).Msg("clean - remove failed")
		return false
	}
	return true
}

func (t *Transport) fireRemoved(removed []*Element) {
	for _, el := range removed {
		t.hooks.removed(t.logger, el)
	}
}
