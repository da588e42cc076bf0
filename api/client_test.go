package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testPublicKey = "pk_test_123"
	testID        = "tx-1"
)

var testParameters = threedsmodel.Parameters{ID: testID}

func newClient(t *testing.T, baseURL string, options ...api.ClientOption) *api.Client {
	t.Helper()
	options = append([]api.ClientOption{api.WithLogger(zerolog.Nop())}, options...)
	c, err := api.NewClient(baseURL, testPublicKey, options...)
	require.NoError(t, err)
	return c
}

// sseHandler writes the raw frames then either closes or holds the stream open.
func sseHandler(frames []string, hold bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = io.WriteString(w, frame)
			flusher.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}
}

func dataFrame(a threedsmodel.Authentication) string {
	raw, _ := json.Marshal(a)
	return fmt.Sprintf("data: %s\n\n", raw)
}

func listenAll(t *testing.T, ctx context.Context, c *api.Client) ([]*threedsmodel.Authentication, error) {
	t.Helper()
	var events []*threedsmodel.Authentication
	for event, err := range c.Listen(ctx, testParameters) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestClient_SetBrowserData(t *testing.T) {
	var got api.BrowserData
	var path, publicKey, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		publicKey = r.URL.Query().Get("publicKey")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	browser := api.BrowserData{Language: "pt-BR", UserAgent: "test-agent", ScreenWidth: 1920, ScreenHeight: 1080, ColorDepth: 24}

	require.NoError(t, c.SetBrowserData(context.Background(), testParameters, browser))
	require.Equal(t, http.MethodPatch, method)
	require.Equal(t, "/tx-1/browser", path)
	require.Equal(t, testPublicKey, publicKey)
	require.Equal(t, browser, got)
}

func TestClient_SetBrowserDataFailures(t *testing.T) {
	t.Run("non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}))
		defer srv.Close()

		err := newClient(t, srv.URL).SetBrowserData(context.Background(), testParameters, api.BrowserData{})
		require.ErrorIs(t, err, threedsmodel.ErrNetwork)
		require.Contains(t, err.Error(), "400")
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := newClient(t, url).SetBrowserData(context.Background(), testParameters, api.BrowserData{})
		require.ErrorIs(t, err, threedsmodel.ErrNetwork)
	})

	t.Run("blank id", func(t *testing.T) {
		err := newClient(t, "http://localhost").SetBrowserData(context.Background(), threedsmodel.Parameters{}, api.BrowserData{})
		require.ErrorIs(t, err, threedsmodel.ErrConfiguration)
	})
}

func TestClient_Listen(t *testing.T) {
	frames := []string{
		": keep-alive\n\n",
		dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StatePendingDirectoryServer, DSMethodURL: "https://ds.example", DSMethodCallbackURL: "https://cb.example"}),
		"event: heartbeat\ndata: {}\n\n",
		dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StatePendingChallenge, ACSURL: "https://acs.example"}),
		"id: 7\rdata: {\"id\":\"a1\",\"state\":\"PENDING_CHALLENGE\"}\r\r",
		"data: {\"id\":\"a1\",\ndata: \"state\":\"COMPLETED\",\"transStatus\":\"Y\"}\n\n",
	}

	var path atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{id}/listen", func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path + "?" + r.URL.RawQuery)
		sseHandler(frames, false)(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	events, err := listenAll(t, context.Background(), newClient(t, srv.URL))
	require.NoError(t, err)
	require.Equal(t, "/tx-1/listen?publicKey="+testPublicKey, path.Load())

	require.Len(t, events, 4)
	require.Equal(t, threedsmodel.StatePendingDirectoryServer, events[0].State)
	require.Equal(t, "https://cb.example", events[0].DSMethodCallbackURL)
	require.Equal(t, threedsmodel.StatePendingChallenge, events[1].State)
	require.Equal(t, threedsmodel.StatePendingChallenge, events[2].State)
	require.Empty(t, events[2].ACSURL)
	require.Equal(t, threedsmodel.StateCompleted, events[3].State)
	require.Equal(t, "Y", events[3].TransStatus)
}

func TestClient_ListenMalformedEvents(t *testing.T) {
	frames := []string{
		"data: {not json\n\n",
		"data: {\"id\":\"a1\"}\n\n",
		dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StateFailed, FailReason: "02"}),
	}
	srv := httptest.NewServer(sseHandler(frames, false))
	defer srv.Close()

	t.Run("skipped by default", func(t *testing.T) {
		events, err := listenAll(t, context.Background(), newClient(t, srv.URL))
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "02", events[0].FailReason)
	})

	t.Run("fatal when strict", func(t *testing.T) {
		events, err := listenAll(t, context.Background(), newClient(t, srv.URL, api.WithStrictParsing(true)))
		require.ErrorIs(t, err, threedsmodel.ErrProtocolParse)
		require.Empty(t, events)
	})
}

func TestClient_ListenChannelErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := listenAll(t, context.Background(), newClient(t, srv.URL))
		require.ErrorIs(t, err, threedsmodel.ErrNetwork)
		require.Contains(t, err.Error(), "401")
	})

	t.Run("connection dropped mid-message", func(t *testing.T) {
		frames := []string{
			dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StatePendingDirectoryServer, DSMethodURL: "https://ds.example", DSMethodCallbackURL: "https://cb.example"}),
			dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StatePendingChallenge, ACSURL: "https://acs.example"}),
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sseHandler(frames, false)(w, r)
			hijacker, ok := w.(http.Hijacker)
			if !ok {
				return
			}
			conn, buf, err := hijacker.Hijack()
			if err != nil {
				return
			}
			// announce a chunk, send part of it, then drop the connection
			_, _ = buf.WriteString("40\r\ndata: {\"id\":\"a1\",\"sta")
			_ = buf.Flush()
			_ = conn.Close()
		}))
		defer srv.Close()

		events, err := listenAll(t, context.Background(), newClient(t, srv.URL))
		require.ErrorIs(t, err, threedsmodel.ErrNetwork)
		require.Len(t, events, 2)
		require.Equal(t, threedsmodel.StatePendingDirectoryServer, events[0].State)
		require.Equal(t, threedsmodel.StatePendingChallenge, events[1].State)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := listenAll(t, context.Background(), newClient(t, url))
		require.ErrorIs(t, err, threedsmodel.ErrNetwork)
	})
}

func TestClient_ListenCancellation(t *testing.T) {
	var closed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseHandler([]string{dataFrame(threedsmodel.Authentication{ID: "a1", State: threedsmodel.StatePendingChallenge})}, true)(w, r)
		closed.Store(true)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	t.Run("cancel ends the sequence", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		received := make(chan struct{}, 1)
		go func() {
			var err error
			for _, e := range c.Listen(ctx, testParameters) {
				if e != nil {
					err = e
					break
				}
				received <- struct{}{}
			}
			done <- err
		}()

		<-received
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Listen did not end after cancellation")
		}
		require.Eventually(t, closed.Load, time.Second, 5*time.Millisecond)
	})

	t.Run("break closes the channel", func(t *testing.T) {
		closed.Store(false)
		for event, err := range c.Listen(context.Background(), testParameters) {
			require.NoError(t, err)
			require.Equal(t, threedsmodel.StatePendingChallenge, event.State)
			break
		}
		require.Eventually(t, closed.Load, time.Second, 5*time.Millisecond)
	})
}

func TestClient_TokenSource(t *testing.T) {
	var authorization atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret-token", TokenType: "Bearer"})
	c, err := api.NewClient(srv.URL, "", api.WithTokenSource(ts), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	require.NoError(t, c.SetBrowserData(context.Background(), testParameters, api.BrowserData{}))
	require.Equal(t, "Bearer secret-token", authorization.Load())
}

func TestNewClient(t *testing.T) {
	t.Run("credential required", func(t *testing.T) {
		_, err := api.NewClient("https://api.example", "")
		require.ErrorIs(t, err, threedsmodel.ErrConfiguration)
	})

	t.Run("invalid base url", func(t *testing.T) {
		_, err := api.NewClient("::not a url", testPublicKey)
		require.ErrorIs(t, err, threedsmodel.ErrConfiguration)
	})

	t.Run("default base url", func(t *testing.T) {
		_, err := api.NewClient("", testPublicKey)
		require.NoError(t, err)
	})
}
