package web

import (
	"context"
	"net/http"
)

// RouteInfo describes the route that matched a request.
type RouteInfo struct {
	Name    string
	Pattern string
	Args    map[string]any
}

// WithRoute attaches route information to handlers of one route.
func WithRoute(info RouteInfo, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), routeKey, info)))
	})
}

// Route returns the matched route's information.
func Route(r *http.Request) (RouteInfo, bool) {
	info, ok := r.Context().Value(routeKey).(RouteInfo)
	return info, ok
}

// RouteArgs returns the arguments registered with the matched route.
func RouteArgs(r *http.Request) map[string]any {
	info, _ := Route(r)
	return info.Args
}

// RouteName returns the matched route's name, if any.
func RouteName(r *http.Request) string {
	info, _ := Route(r)
	return info.Name
}
