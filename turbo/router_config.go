package turbo

import (
	"net/http"

	"oss.nandlabs.io/jobexec/turbo/filters"
)

// SetUnmanaged sets the handler invoked when no route matches the request
// path.
func (router *Router) SetUnmanaged(handler http.Handler) {
	router.lock.Lock()
	defer router.lock.Unlock()
	router.unManagedRouteHandler = handler
}

// SetUnsupportedMethod sets the handler invoked when a route matches the
// path but not the request method.
func (router *Router) SetUnsupportedMethod(handler http.Handler) {
	router.lock.Lock()
	defer router.lock.Unlock()
	router.unsupportedMethodHandler = handler
}

// AddGlobalFilter registers a filter run, in order, ahead of every request
// the router serves (including unmanaged/unsupported-method handlers).
func (router *Router) AddGlobalFilter(filter FilterFunc) {
	router.lock.Lock()
	defer router.lock.Unlock()
	router.globalFilters = append(router.globalFilters, filter)
}

// AddCorsFilter installs CORS handling, built from opts, ahead of every
// request the router serves. A nil opts is a no-op so a server run without
// CORS configured behaves as before.
func (router *Router) AddCorsFilter(opts *filters.CorsOptions) {
	if opts == nil {
		return
	}
	cf := opts.NewFilter()
	router.lock.Lock()
	defer router.lock.Unlock()
	router.corsHandler = cf.HandleCors
}
