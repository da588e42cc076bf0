// Package threedsecure runs the cardholder side of an EMV 3-D Secure
// authentication: it sends the browser fingerprint, follows the
// Authentication Service event stream and runs the DS Method and challenge
// sub-flows the stream asks for, until a terminal state is reached.
package threedsecure

import (
	"context"
	"iter"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/frame"
	ierrors "github.com/jrsteele09/go-threedsecure/internal/errors"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultTimeout bounds a whole session once the fingerprint has been sent.
	DefaultTimeout = 10 * time.Minute

	instrumentationName = "github.com/jrsteele09/go-threedsecure/threedsecure"
)

// errSessionDone is the cancellation cause once Execute has returned.
var errSessionDone = errors.New("session finished")

// SessionClient is the Authentication Service as seen by the orchestrator.
// *api.Client implements it.
type SessionClient interface {
	SetBrowserData(ctx context.Context, parameters threedsmodel.Parameters, browser api.BrowserData) error
	Listen(ctx context.Context, parameters threedsmodel.Parameters) iter.Seq2[*threedsmodel.Authentication, error]
}

var _ SessionClient = (*api.Client)(nil)

// Options holds the required dependencies of the Service
type Options struct {
	Client    SessionClient   // Authentication Service client
	Container frame.Container // Mount point owned by the service while a session runs
}

// Service orchestrates 3DS sessions. It is safe to reuse for consecutive
// sessions; concurrent sessions must not share a container.
type Service struct {
	client             SessionClient
	container          frame.Container
	collector          BrowserDataCollector
	navigator          frame.Navigator
	hooks              frame.Hooks
	timeout            time.Duration
	fingerprintRetries int
	tracer             trace.Tracer
	logger             zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the logger used by the service and its transports
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout sets the session timeout (default DefaultTimeout)
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// WithHooks sets advisory lifecycle hooks for the sub-flow surfaces
func WithHooks(hooks frame.Hooks) ServiceOption {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithNavigator replaces the HTTP navigator used to load sub-flow submissions
func WithNavigator(navigator frame.Navigator) ServiceOption {
	return func(s *Service) {
		s.navigator = navigator
	}
}

// WithBrowserDataCollector sets where the browser fingerprint comes from
func WithBrowserDataCollector(collector BrowserDataCollector) ServiceOption {
	return func(s *Service) {
		s.collector = collector
	}
}

// WithFingerprintRetries retries a failed fingerprint submission up to n
// times with exponential backoff. The default is no retry.
func WithFingerprintRetries(n int) ServiceOption {
	return func(s *Service) {
		s.fingerprintRetries = n
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider (default: the global one)
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// NewService initializes a Service with its required dependencies.
func NewService(opts Options, options ...ServiceOption) (*Service, error) {
	if opts.Client == nil {
		return nil, errors.Wrap(threedsmodel.ErrConfiguration, "[NewService] client is required")
	}
	if opts.Container == nil {
		return nil, errors.Wrap(threedsmodel.ErrConfiguration, "[NewService] container is required")
	}

	s := &Service{
		client:    opts.Client,
		container: opts.Container,
		collector: StaticBrowserData(DefaultBrowserData()),
		timeout:   DefaultTimeout,
		tracer:    otel.Tracer(instrumentationName),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.timeout <= 0 {
		return nil, errors.Wrap(threedsmodel.ErrConfiguration, "[NewService] timeout must be positive")
	}
	if s.navigator == nil {
		s.navigator = frame.NewHTTPNavigator(nil)
	}
	return s, nil
}

// session holds the per-Execute state: one transport per sub-flow.
type session struct {
	logger    zerolog.Logger
	dsMethod  *frame.Transport
	challenge *frame.Transport
}

func (s *Service) newSession(logger zerolog.Logger) *session {
	options := []frame.TransportOption{
		frame.WithNavigator(s.navigator),
		frame.WithHooks(s.hooks),
		frame.WithLogger(logger),
	}
	return &session{
		logger:    logger,
		dsMethod:  frame.NewTransport("DSMethod", options...),
		challenge: frame.NewTransport("Challenge", options...),
	}
}

func (sess *session) clean() {
	sess.challenge.Clean()
	sess.dsMethod.Clean()
}

// Execute authenticates the transaction identified by parameters. ctx is
// the session cancellation signal.
//
// The returned Result reports the terminal state; Result.Success tells
// whether the purchase may proceed. An error is returned when no terminal
// state was reached: ErrCancelled for a timeout or a cancelled ctx,
// ErrNetwork, ErrTransport or ErrConfiguration otherwise. The container is
// left without sub-flow elements on every path.
func (s *Service) Execute(ctx context.Context, parameters threedsmodel.Parameters) (result *threedsmodel.Result, returnErr error) {
	ctx, span := s.tracer.Start(ctx, "threedsecure.Execute", trace.WithAttributes(attribute.String("threeds.id", parameters.ID)))
	defer func() {
		if returnErr != nil {
			span.RecordError(returnErr)
			span.SetStatus(codes.Error, returnErr.Error())
		} else {
			span.SetAttributes(attribute.String("threeds.state", string(result.State)))
		}
		span.End()
	}()

	if err := parameters.Validate(); err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("id", parameters.ID).Logger()
	logger.Debug().Msg("execute - starting")

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(errSessionDone)

	sess := s.newSession(logger)
	defer func() {
		sess.clean()
		logger.Debug().Msg("execute - finally")
	}()

	if err := s.submitBrowserData(ctx, parameters, logger); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx, "[Service.Execute] setBrowserData")
		}
		logger.Err(err).Msg("execute - setBrowserData")
		return nil, errors.Wrap(err, "[Service.Execute] setBrowserData")
	}

	ctx, cancelTimeout := context.WithTimeoutCause(ctx, s.timeout, threedsmodel.ErrSessionTimeout)
	defer cancelTimeout()

	var last *threedsmodel.Authentication
	for event, err := range s.client.Listen(ctx, parameters) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Err(err).Msg("execute - listen")
			cancel(err)
			return nil, errors.Wrap(err, "[Service.Execute] listen")
		}

		last = event
		terminal, err := s.dispatch(ctx, sess, event)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx, "[Service.Execute] "+string(event.State))
			}
			logger.Err(err).Str("state", string(event.State)).Msg("execute - flowStep")
			cancel(err)
			return nil, errors.Wrap(err, "[Service.Execute] "+string(event.State))
		}
		if terminal {
			cancel(errSessionDone)
			break
		}
	}

	if last != nil && last.State.IsTerminal() {
		result := threedsmodel.NewResult(last)
		logger.Info().Str("state", string(result.State)).Bool("success", result.Success()).Msg("execute - completed")
		return result, nil
	}
	if ctx.Err() != nil {
		err := cancelled(ctx, "[Service.Execute] listen")
		logger.Warn().Err(err).Msg("execute - cancelled")
		return nil, err
	}
	return nil, ierrors.WithKind(threedsmodel.ErrNetwork, ierrors.ErrStreamClosed, "[Service.Execute] event channel closed before a terminal state")
}

// cancelled builds the ErrCancelled error carrying the cancellation cause.
func cancelled(ctx context.Context, msg string) error {
	return ierrors.WithKind(threedsmodel.ErrCancelled, context.Cause(ctx), "%s", msg)
}

func (s *Service) submitBrowserData(ctx context.Context, parameters threedsmodel.Parameters, logger zerolog.Logger) error {
	browser, err := s.collector.Collect(ctx)
	if err != nil {
		return ierrors.WithKind(threedsmodel.ErrConfiguration, err, "[Service.submitBrowserData] collect")
	}
	browser = browser.Normalized()

	if s.fingerprintRetries <= 0 {
		return s.client.SetBrowserData(ctx, parameters, browser)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(s.fingerprintRetries)), ctx)

	operation := func() error {
		err := s.client.SetBrowserData(ctx, parameters, browser)
		if errors.Is(err, threedsmodel.ErrConfiguration) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("setBrowserData failed, will retry")
		}
		return err
	}
	return backoff.Retry(operation, policy)
}
