package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/distvote/evote/log"
)

// Error wraps a handler-facing error with an application error code and the
// HTTP status it should produce.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON renders {"error": "...", "code": N}.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{Err: e.Err.Error(), Code: e.Code})
}

func (e Error) Error() string {
	return e.Err.Error()
}

// Write sends the error as a JSON body with its HTTP status.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	log.Debugw("api error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// WithErr appends err's message to e.Err, preserving e's code and status.
func (e Error) WithErr(err error) Error {
	return Error{Err: fmt.Errorf("%w: %v", e.Err, err.Error()), Code: e.Code, HTTPstatus: e.HTTPstatus}
}

// Application error codes. Never renumber an existing entry; append new
// ones after the last 4xxx/5xxx.
var (
	ErrMalformedBody          = Error{Code: 4001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature       = Error{Code: 4002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrVoterNotFound          = Error{Code: 4003, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("voter not found")}
	ErrVoterAlreadyExists     = Error{Code: 4004, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already registered")}
	ErrAlreadyVoted           = Error{Code: 4005, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already cast a ballot")}
	ErrInvalidBallotProof     = Error{Code: 4006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("ballot proof does not verify")}
	ErrInvalidCertificate     = Error{Code: 4007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("certificate signature does not verify")}
	ErrInvalidDecryptionProof = Error{Code: 4008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("partial decryption proof does not verify")}
	ErrTallyNotReady          = Error{Code: 4009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("tally not ready: missing arbiter contributions")}
	ErrNoSuchSession          = Error{Code: 4010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("no such handshake session")}

	ErrMarshalingServerJSONFailed = Error{Code: 5001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling server JSON failed")}
	ErrInternal                   = Error{Code: 5002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
