package api

import (
	"encoding/json"
	"net/http"

	"github.com/distvote/evote/log"
)

// httpWriteJSON marshals data and writes it with a 200 status.
func httpWriteJSON(w http.ResponseWriter, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(body); err != nil {
		log.Warnw("failed to write response body", "error", err)
	}
}

// httpWriteOK writes a bare 200 OK body, used by endpoints with no payload.
func httpWriteOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"ok":true}` + "\n")); err != nil {
		log.Warnw("failed to write response body", "error", err)
	}
}
