// Package foo is a small module showing templates, filters, flashes,
// reverse routing and the JSON writer.
package foo

import (
	"net/http"
	"strings"

	"github.com/artpar/waterspout/app"
	"github.com/artpar/waterspout/web"
	"github.com/go-chi/chi/v5"
)

// New returns the foo module. Its templates live next to this file.
func New() *app.Module {
	m := app.NewModule("foo")
	m.AddFilter("u", strings.ToUpper)

	m.HandleFunc("/", index, app.WithName("foo.index"))
	m.HandleFunc("/greet/{name}", greet, app.WithName("foo.greet"))
	m.AddHandler("/notes", web.Methods{
		http.MethodGet:  http.HandlerFunc(listNotes),
		http.MethodPost: http.HandlerFunc(addNote),
	}, app.WithName("foo.notes"))
	return m
}

func index(w http.ResponseWriter, r *http.Request) {
	render(w, r, "index.html", map[string]any{"Name": "waterspout"})
}

func greet(w http.ResponseWriter, r *http.Request) {
	render(w, r, "index.html", map[string]any{"Name": chi.URLParam(r, "name")})
}

func listNotes(w http.ResponseWriter, r *http.Request) {
	notes, _ := web.SessionFrom(r).Get("notes").([]any)
	web.WriteJSON(w, r, http.StatusOK, map[string]any{
		"notes":   notes,
		"flashes": web.Flashed(r),
	})
}

func addNote(w http.ResponseWriter, r *http.Request) {
	note := strings.TrimSpace(r.PostFormValue("note"))
	if note == "" {
		http.Error(w, "note is required", http.StatusBadRequest)
		return
	}

	s := web.SessionFrom(r)
	notes, _ := s.Get("notes").([]any)
	s.Set("notes", append(notes, note))
	web.Flash(r, "note saved", "info")

	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}

func render(w http.ResponseWriter, r *http.Request, name string, vars map[string]any) {
	if err := web.Render(w, r, name, vars); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
