package web

import (
	"net/http"

	"github.com/artpar/waterspout/domain/session"
)

// Flash queues a message for a later request. An empty category is stored
// as "message".
func Flash(r *http.Request, message, category string) {
	session.Flash(SessionFrom(r).values, message, category)
}

// Flashed consumes queued messages and returns their text. With
// categories, only matching messages are consumed; the rest stay queued.
func Flashed(r *http.Request, categories ...string) []string {
	return session.Messages(FlashedWithCategories(r, categories...))
}

// FlashedWithCategories is Flashed keeping each message's category.
func FlashedWithCategories(r *http.Request, categories ...string) []session.FlashMessage {
	return session.TakeFlashes(SessionFrom(r).values, categories...)
}
