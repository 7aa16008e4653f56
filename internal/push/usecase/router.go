package usecase

import (
	"log"
	"strings"
	"unicode"

	"karmaterra-backend/internal/push/domain"
)

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
	schemeApp   = "app://"
	paramMarker = ":"
)

type routePattern struct {
	route string
	// prefix is the part before the first parameter marker; empty for exact routes
	prefix string
}

// Router decides where a tapped notification leads.
// Every in-app candidate must pass the allow-list; anything doubtful goes home.
type Router struct {
	patterns []routePattern
	home     domain.Destination
}

// NewRouter builds a router over an allow-list of in-app routes.
// Routes containing ":" (e.g. "/blogs/:id") match any candidate that starts with the
// text before the marker and has something after it.
func NewRouter(allowList []string, homeRoute string) *Router {
	if homeRoute == "" {
		homeRoute = "/"
	}
	r := &Router{home: domain.HomeDestination(homeRoute)}
	for _, route := range allowList {
		route = strings.TrimSpace(route)
		if route == "" {
			continue
		}
		p := routePattern{route: route}
		if i := strings.Index(route, paramMarker); i >= 0 {
			p.prefix = route[:i]
		}
		r.patterns = append(r.patterns, p)
	}
	return r
}

// Home returns the fallback destination
func (r *Router) Home() domain.Destination {
	return r.home
}

// Route resolves the destination for a tapped notification. It never panics.
func (r *Router) Route(action domain.NotificationAction) (dest domain.Destination) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[PushRouter] Recovered while routing %q: %v", action.Link, rec)
			dest = r.home
		}
	}()

	link := strings.TrimSpace(action.Link)
	if link == "" {
		return r.home
	}

	if strings.HasPrefix(link, schemeHTTP) || strings.HasPrefix(link, schemeHTTPS) {
		// opened outside the app's own navigation
		return domain.ExternalDestination(link)
	}

	var candidate string
	switch {
	case strings.HasPrefix(link, "/"):
		candidate = link
	case strings.HasPrefix(link, schemeApp):
		candidate = "/" + strings.TrimPrefix(link, schemeApp)
	default:
		candidate = "/" + link
	}

	if !r.Allowed(candidate) {
		log.Printf("[PushRouter] Route %q is not allowed, opening home", candidate)
		return r.home
	}
	return domain.AppRouteDestination(candidate)
}

// Allowed reports whether candidate is a safe, allow-listed in-app route
func (r *Router) Allowed(candidate string) bool {
	if !safePath(candidate) {
		return false
	}
	for _, p := range r.patterns {
		if p.prefix == "" {
			if candidate == p.route {
				return true
			}
			continue
		}
		if strings.HasPrefix(candidate, p.prefix) && len(candidate) > len(p.prefix) {
			return true
		}
	}
	return false
}

// safePath rejects traversal, protocol-relative paths and control characters
// before the allow-list is consulted.
func safePath(path string) bool {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "\\") {
		return false
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." || segment == "." {
			return false
		}
	}
	for _, c := range path {
		if unicode.IsControl(c) || unicode.IsSpace(c) {
			return false
		}
	}
	return true
}
