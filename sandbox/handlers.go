package sandbox

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-threedsecure/api"
	"github.com/jrsteele09/go-threedsecure/payload"
	"github.com/jrsteele09/go-threedsecure/threedsmodel"
)

const maxBodySize = 64 << 10

type dsMethodData struct {
	ThreeDSServerTransID         string `json:"threeDSServerTransID"`
	ThreeDSMethodNotificationURL string `json:"threeDSMethodNotificationURL"`
}

type challengeRequest struct {
	ThreeDSServerTransID string `json:"threeDSServerTransID"`
	ACSTransID           string `json:"acsTransID"`
	MessageVersion       string `json:"messageVersion"`
	MessageType          string `json:"messageType"`
	ChallengeWindowSize  string `json:"challengeWindowSize"`
}

var dsMethodPage = template.Must(template.New("dsmethod").Parse(`<!DOCTYPE html>
<html><body>
<form id="notify" method="POST" action="{{.NotificationURL}}">
<input type="hidden" name="threeDSMethodData" value="{{.Data}}">
</form>
</body></html>`))

var challengePage = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html><body>
<h1>Sandbox ACS</h1>
<p>Transaction {{.ACSTransID}} (protocol {{.MessageVersion}}, window {{.ChallengeWindowSize}})</p>
<p>The challenge is approved automatically.</p>
</body></html>`))

// BrowserHandler records the browser fingerprint of a transaction.
func (s *Server) BrowserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.transactions.Get(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		var browser api.BrowserData
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&browser); err != nil {
			s.logError(r, err)
			http.Error(w, "invalid browser data", http.StatusBadRequest)
			return
		}
		tx.setBrowser(browser)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListenHandler streams the scripted events of a transaction as server-sent events.
func (s *Server) ListenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tx, err := s.transactions.Get(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		for i, step := range tx.Steps {
			data, err := json.Marshal(resolveEvent(r, step.Event))
			if err != nil {
				s.logError(r, err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", i, data); err != nil {
				return
			}
			flusher.Flush()

			if step.WaitFor == SubmissionNone {
				continue
			}
			s.logger.Debug().Str("id", tx.ID).Str("waitFor", string(step.WaitFor)).Msg("listen - waiting")
			select {
			case <-tx.signal(step.WaitFor):
			case <-r.Context().Done():
				return
			}
		}
	}
}

// DSMethodHandler receives the DS Method submission and answers with the
// page that would notify the 3DS server.
func (s *Server) DSMethodHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data dsMethodData
		raw, ok := s.decodeField(w, r, "threeDSMethodData", &data)
		if !ok {
			return
		}

		tx, err := s.transactions.GetByServerTransID(data.ThreeDSServerTransID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		tx.markSubmitted(SubmissionDSMethod)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = dsMethodPage.Execute(w, struct{ NotificationURL, Data string }{data.ThreeDSMethodNotificationURL, raw})
	}
}

func (s *Server) DSMethodCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// ACSHandler receives the CReq and approves the challenge.
func (s *Server) ACSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creq challengeRequest
		if _, ok := s.decodeField(w, r, "creq", &creq); !ok {
			return
		}
		if creq.MessageType != "CReq" {
			http.Error(w, "unexpected messageType "+strconv.Quote(creq.MessageType), http.StatusBadRequest)
			return
		}

		tx, err := s.transactions.GetByServerTransID(creq.ThreeDSServerTransID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		tx.markSubmitted(SubmissionChallenge)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = challengePage.Execute(w, creq)
	}
}

// decodeField reads an encoded form field into v, writing a 400 on failure.
func (s *Server) decodeField(w http.ResponseWriter, r *http.Request, field string, v any) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		s.logError(r, err)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return "", false
	}
	raw := r.PostForm.Get(field)
	if raw == "" {
		http.Error(w, field+" is required", http.StatusBadRequest)
		return "", false
	}
	if err := payload.Decode(raw, v); err != nil {
		s.logError(r, err)
		http.Error(w, "invalid "+field, http.StatusBadRequest)
		return "", false
	}
	return raw, true
}

func resolveEvent(r *http.Request, event threedsmodel.Authentication) threedsmodel.Authentication {
	event.ACSURL = resolve(r, event.ACSURL)
	event.DSMethodURL = resolve(r, event.DSMethodURL)
	event.DSMethodCallbackURL = resolve(r, event.DSMethodCallbackURL)
	return event
}

func (s *Server) logError(r *http.Request, err error) {
	s.logger.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
}
