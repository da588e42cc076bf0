// Package api talks to the 3DS Authentication Service: it submits the
// browser fingerprint and listens to the authentication event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jrsteele09/go-threedsecure/bucket"
	"github.com/jrsteele09/go-threedsecure/internal/errors"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production Authentication Service endpoint.
const DefaultBaseURL = "https://api.sqala.tech/core/v1/threedsecure"

const (
	defaultRequestTimeout = 30 * time.Second
	maxEventSize          = 1 << 20
)

// Client is the Authentication Service session client.
type Client struct {
	baseURL        string
	publicKey      string
	httpClient     *http.Client
	tokenSource    oauth2.TokenSource
	requestTimeout time.Duration
	strictParsing  bool
	logger         zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. It must not carry a global timeout,
// the event stream stays open for the whole session.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource authenticates every request with an OAuth2 bearer token,
// for server side deployments that do not use the public key.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithRequestTimeout bounds the fingerprint request
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithStrictParsing makes a malformed event terminate the stream with
// ErrProtocolParse instead of being logged and skipped.
func WithStrictParsing(strict bool) ClientOption {
	return func(c *Client) {
		c.strictParsing = strict
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for baseURL; an empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, publicKey string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.WithKind(threedsmodel.ErrConfiguration, err, "[NewClient] invalid base url")
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		publicKey:      publicKey,
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.publicKey == "" && c.tokenSource == nil {
		return nil, errors.WithKind(threedsmodel.ErrConfiguration, nil, "[NewClient] public key or token source is required")
	}
	if c.tokenSource != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.httpClient = oauth2.NewClient(ctx, c.tokenSource)
	}
	return c, nil
}

// SetBrowserData sends the browser fingerprint of the transaction. It is a
// single request: any transport failure or non-2xx response is ErrNetwork.
func (c *Client) SetBrowserData(ctx context.Context, parameters threedsmodel.Parameters, browser BrowserData) error {
	if err := parameters.Validate(); err != nil {
		return err
	}
	c.logger.Debug().Str("id", parameters.ID).Msg("setBrowserData")

	body, err := json.Marshal(browser)
	if err != nil {
		return errors.WithKind(threedsmodel.ErrConfiguration, err, "[Client.SetBrowserData] json.Marshal")
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.endpoint(parameters.ID, "browser"), bytes.NewReader(body))
	if err != nil {
		return errors.WithKind(threedsmodel.ErrConfiguration, err, "[Client.SetBrowserData] http.NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithKind(threedsmodel.ErrNetwork, err, "[Client.SetBrowserData] request")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.WithKind(threedsmodel.ErrNetwork, errors.ErrUnexpectedStatus, "[Client.SetBrowserData] status %d", resp.StatusCode)
	}
	return nil
}

// Listen opens the event stream of the transaction when the returned
// sequence is ranged over, and yields events in arrival order.
//
// The sequence ends without error when ctx is cancelled or the service
// closes the stream. A connection or read failure is yielded once as
// ErrNetwork. Malformed events are skipped, or yielded as ErrProtocolParse
// with strict parsing. Leaving the loop early closes the stream.
func (c *Client) Listen(ctx context.Context, parameters threedsmodel.Parameters) iter.Seq2[*threedsmodel.Authentication, error] {
	return func(yield func(*threedsmodel.Authentication, error) bool) {
		if err := parameters.Validate(); err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := bucket.New[*threedsmodel.Authentication]()
		stop := context.AfterFunc(ctx, func() {
			c.logger.Debug().Str("id", parameters.ID).Msg("listen - abort")
			events.Close()
		})
		defer stop()

		go c.stream(ctx, c.endpoint(parameters.ID, "listen"), events)

		// The AfterFunc closes the bucket on cancellation, so reading with a
		// background context cannot block forever.
		for event, err := range events.All(context.Background()) {
			if !yield(event, err) {
				return
			}
		}
	}
}

func (c *Client) stream(ctx context.Context, endpoint string, events *bucket.Bucket[*threedsmodel.Authentication]) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := sse.NewClient(endpoint, sse.ClientMaxBufferSize(maxEventSize))
	source.Connection = c.httpClient
	source.ResponseValidator = validateStream
	// the session owns retries, a dropped stream is terminal
	source.ReconnectStrategy = &backoff.StopBackOff{}

	var parseErr error
	err := source.SubscribeRawWithContext(streamCtx, func(msg *sse.Event) {
		if parseErr != nil || !isDefaultEvent(msg) || len(msg.Data) == 0 {
			return
		}

		event, err := decodeAuthentication(msg.Data)
		if err != nil {
			if c.strictParsing {
				parseErr = errors.WithKind(threedsmodel.ErrProtocolParse, err, "[Client.Listen] event %q", msg.ID)
				cancel()
				return
			}
			c.logger.Warn().Err(err).Str("data", string(msg.Data)).Msg("listen - skipping malformed event")
			return
		}

		c.logger.Debug().Str("id", event.ID).Str("state", string(event.State)).Msg("listen - onmessage")
		events.Push(event)
	})

	switch {
	case parseErr != nil:
		events.PushError(parseErr)
	case err != nil:
		c.fail(ctx, events, errors.WithKind(threedsmodel.ErrNetwork, err, "[Client.Listen] event source"))
	default:
		c.logger.Debug().Msg("listen - stream closed")
		events.Close()
	}
}

func validateStream(_ *sse.Client, resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return errors.Wrapf(errors.ErrUnexpectedStatus, "status %d", resp.StatusCode)
	}
	return nil
}

// isDefaultEvent reports whether the event would reach an EventSource onmessage handler.
func isDefaultEvent(msg *sse.Event) bool {
	return len(msg.Event) == 0 || string(msg.Event) == "message"
}

// fail terminates the bucket with err unless the failure was caused by cancellation.
func (c *Client) fail(ctx context.Context, events *bucket.Bucket[*threedsmodel.Authentication], err error) {
	if ctx.Err() != nil {
		events.Close()
		return
	}
	c.logger.Err(err).Msg("listen - onerror")
	events.PushError(err)
}

func decodeAuthentication(data []byte) (*threedsmodel.Authentication, error) {
	var event threedsmodel.Authentication
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.State == "" {
		return nil, errors.Wrapf(errors.ErrMissingField, "state")
	}
	return &event, nil
}

func (c *Client) endpoint(id, action string) string {
	endpoint := c.baseURL + "/" + url.PathEscape(id) + "/" + action
	if c.publicKey != "" {
		endpoint += "?" + url.Values{"publicKey": []string{c.publicKey}}.Encode()
	}
	return endpoint
}
