package frame

import "github.com/rs/zerolog"

// Hooks are advisory lifecycle callbacks for host instrumentation.
// They run synchronously; a nil hook is skipped and a panicking hook is
// recovered and logged.
type Hooks struct {
	OnCreated  func(surface *Element)
	OnAttached func(surface *Element)
	OnLoaded   func(surface *Element)
	OnErrored  func(surface *Element, err error)
	OnRemoved  func(el *Element)
}

func (h Hooks) created(logger zerolog.Logger, el *Element) {
	if h.OnCreated != nil {
		safeCall(logger, "created", func() { h.OnCreated(el) })
	}
}

func (h Hooks) attached(logger zerolog.Logger, el *Element) {
	if h.OnAttached != nil {
		safeCall(logger, "attached", func() { h.OnAttached(el) })
	}
}

func (h Hooks) loaded(logger zerolog.Logger, el *Element) {
	if h.OnLoaded != nil {
		safeCall(logger, "loaded", func() { h.OnLoaded(el) })
	}
}

func (h Hooks) errored(logger zerolog.Logger, el *Element, err error) {
	if h.OnErrored != nil {
		safeCall(logger, "errored", func() { h.OnErrored(el, err) })
	}
}

func (h Hooks) removed(logger zerolog.Logger, el *Element) {
	if h.OnRemoved != nil {
		safeCall(logger, "removed", func() { h.OnRemoved(el) })
	}
}

func safeCall(logger zerolog.Logger, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("hook", hook).Interface("panic", r).Msg("lifecycle hook panicked")
		}
	}()
	fn()
}
