package vod

import (
	"errors"
	"net/http"

	"github.com/imrenagi/vod-upload-relay/relay"
	"github.com/rs/zerolog/log"
)

type cError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unable to encode response")
		return
	}
	w.Header().Set(ContentTypeHeader, "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	b, _ := json.Marshal(cError{Error: msg})
	w.Header().Set(ContentTypeHeader, "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

// writeRelayError maps a relay failure to its status. Only the message of a
// relay.Error reaches the client; wrapped causes stay in the log.
func writeRelayError(w http.ResponseWriter, r *http.Request, err error) {
	kind := relay.KindOf(err)
	msg := "internal server error"
	var e *relay.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	event := log.Ctx(r.Context()).Debug()
	if kind == relay.KindInternal {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("kind", kind.String()).Msg("request failed")

	writeError(w, kind.StatusCode(), msg)
}

// writeUpstream relays an upstream reply. Content-Length is left to the
// server except on HEAD, where there is no body to measure.
func writeUpstream(w http.ResponseWriter, r *http.Request, res relay.Response) {
	for k, vv := range res.Header {
		if r.Method != http.MethodHead && http.CanonicalHeaderKey(k) == "Content-Length" {
			continue
		}
		w.Header().Del(k)
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.StatusCode)
	if r.Method != http.MethodHead && len(res.Body) > 0 {
		w.Write(res.Body)
	}
}
