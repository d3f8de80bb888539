package route_test

import (
	"net/http"
	"testing"

	"github.com/artpar/waterspout/domain/route"
)

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func TestPrefix_RewritesPatterns(t *testing.T) {
	routes := []route.Route{
		route.New("/", noop),
		{Pattern: "/items/{id}", Handler: noop, Name: "item", Args: map[string]any{"x": 1}},
	}

	got := route.Prefix(routes, "/shop")

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Pattern != "/shop/" {
		t.Errorf("Pattern[0] = %q, want /shop/", got[0].Pattern)
	}
	if got[1].Pattern != "/shop/items/{id}" {
		t.Errorf("Pattern[1] = %q, want /shop/items/{id}", got[1].Pattern)
	}
	if got[1].Name != "item" {
		t.Errorf("Name = %q, want item", got[1].Name)
	}
	if got[1].Args["x"] != 1 {
		t.Errorf("Args[x] = %v, want 1", got[1].Args["x"])
	}

	// Original table is untouched
	if routes[1].Pattern != "/items/{id}" {
		t.Errorf("source pattern mutated: %q", routes[1].Pattern)
	}
}

func TestPrefix_RootLeavesPatterns(t *testing.T) {
	routes := []route.Route{route.New("/a", noop), route.New("/b/{id}", noop)}

	got := route.Prefix(routes, "/")

	for i := range routes {
		if got[i].Pattern != routes[i].Pattern {
			t.Errorf("Pattern[%d] = %q, want %q", i, got[i].Pattern, routes[i].Pattern)
		}
	}
}

func TestDefaultPrefix(t *testing.T) {
	if got := route.DefaultPrefix("blog"); got != "/blog" {
		t.Errorf("DefaultPrefix = %q, want /blog", got)
	}
}

func TestParams(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"/", nil},
		{"/users/{id}", []string{"id"}},
		{"/users/{id:[0-9]+}/posts/{slug}", []string{"id", "slug"}},
		{"/codes/{code:[A-Z]{3}}", []string{"code"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := route.Params(tt.pattern)
			if len(got) != len(tt.want) {
				t.Fatalf("Params(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Params(%q)[%d] = %q, want %q", tt.pattern, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRoute_URL(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		params  []string
		want    string
		wantErr bool
	}{
		{"static", "/about", nil, "/about", false},
		{"one param", "/users/{id}", []string{"42"}, "/users/42", false},
		{"regexp param", "/users/{id:[0-9]+}/edit", []string{"7"}, "/users/7/edit", false},
		{"escaped", "/tags/{tag}", []string{"a b"}, "/tags/a%20b", false},
		{"wildcard", "/files/*", nil, "/files/", false},
		{"missing param", "/users/{id}", nil, "", true},
		{"extra param", "/about", []string{"x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := route.New(tt.pattern, noop)
			got, err := r.URL(tt.params...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("URL() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("URL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	routes := []route.Route{
		route.New("/a", noop),
		{Pattern: "/b", Handler: noop, Name: "b"},
		{Pattern: "/c", Handler: noop, Name: "b"},
	}

	got, ok := route.Find(routes, "b")
	if !ok {
		t.Fatal("Find(b) not found")
	}
	if got.Pattern != "/b" {
		t.Errorf("Find(b).Pattern = %q, want first match /b", got.Pattern)
	}

	if _, ok := route.Find(routes, ""); ok {
		t.Error("Find(\"\") should not match unnamed routes")
	}
}
