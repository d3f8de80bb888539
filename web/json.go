package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
)

// ErrInvalidCallback is returned for a JSONP callback that is not a
// dotted JavaScript identifier.
var ErrInvalidCallback = errors.New("web: invalid JSONP callback")

var callbackRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// WriteJSON writes v as JSON. When the request carries a callback query
// argument the body is wrapped as JSONP and served as JavaScript.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) error {
	return WriteJSONP(w, r.URL.Query().Get("callback"), status, v)
}

// WriteJSONP writes v as JSONP when callback is set, plain JSON otherwise.
func WriteJSONP(w http.ResponseWriter, callback string, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if callback == "" {
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(status)
		_, err = w.Write(body)
		return err
	}

	if !callbackRe.MatchString(callback) {
		http.Error(w, ErrInvalidCallback.Error(), http.StatusBadRequest)
		return ErrInvalidCallback
	}

	w.Header().Set("Content-Type", "application/javascript; charset=UTF-8")
	w.WriteHeader(status)
	_, err = w.Write([]byte(callback + "(" + string(body) + ")"))
	return err
}
