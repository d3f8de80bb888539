// Package demo assembles the example container served by the waterspout
// command.
package demo

import (
	"io"
	"net/http"

	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/demo/foo"
)

// Setup registers the hello world handler and the foo module.
func Setup(c *app.Container) error {
	c.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Hello World!")
	}, app.WithName("index"))

	return c.Register(foo.New(), "")
}
