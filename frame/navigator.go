package frame

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-threedsecure/internal/errors"
)

const (
	defaultNavigationTimeout = 60 * time.Second
	maxDocumentSize          = 1 << 20

	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Navigator loads a form submission into its target surface. The call
// returns once the surface has loaded (success) or failed to load.
type Navigator interface {
	Submit(ctx context.Context, form *Element) (*Document, error)
}

// HTTPNavigator submits forms over HTTP the way a browser would: an
// url-encoded POST that follows redirects, with the final page as the document.
type HTTPNavigator struct {
	client *http.Client
}

var _ Navigator = (*HTTPNavigator)(nil)

// NewHTTPNavigator creates a navigator. A nil client gets a default one with a timeout.
func NewHTTPNavigator(client *http.Client) *HTTPNavigator {
	if client == nil {
		client = &http.Client{Timeout: defaultNavigationTimeout}
	}
	return &HTTPNavigator{client: client}
}

func (n *HTTPNavigator) Submit(ctx context.Context, form *Element) (*Document, error) {
	method := form.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, form.Action, strings.NewReader(form.Fields.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "[HTTPNavigator.Submit] http.NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", acceptHTML)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[HTTPNavigator.Submit] %s %s", method, form.Action)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.Wrapf(err, "[HTTPNavigator.Submit] read body")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Wrapf(errors.ErrUnexpectedStatus, "[HTTPNavigator.Submit] %s returned %d", form.Action, resp.StatusCode)
	}

	return &Document{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
