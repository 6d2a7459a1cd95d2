package turbo

import "net/http"

// GetQueryParam fetches a query parameter directly from the request, without
// needing the Router instance that registered the route. It is the
// package-level counterpart to (*Router).GetQueryParams, used by callers
// (e.g. rest.ServerContext.GetParam) that only have the *http.Request in
// hand.
func GetQueryParam(id string, r *http.Request) (string, error) {
	val := r.URL.Query().Get(id)
	if val == "" {
		return "", errNoSuchQueryParam(id)
	}
	return val, nil
}

// GetPathParam fetches a path parameter stashed in the request context by
// Router.ServeHTTP. It is the package-level counterpart to
// (*Router).GetPathParams.
func GetPathParam(id string, r *http.Request) (string, error) {
	params, ok := r.Context().Value("params").([]Param)
	if !ok {
		return "", errNoSuchPathParam(id)
	}
	for _, p := range params {
		if p.key == id {
			return p.value, nil
		}
	}
	return "", errNoSuchPathParam(id)
}

func errNoSuchQueryParam(id string) error {
	return errNoSuchParam("query", id)
}

func errNoSuchPathParam(id string) error {
	return errNoSuchParam("path", id)
}

func errNoSuchParam(kind, id string) error {
	return &paramNotFoundError{kind: kind, id: id}
}

type paramNotFoundError struct {
	kind string
	id   string
}

func (e *paramNotFoundError) Error() string {
	return "turbo: no such " + e.kind + " parameter " + e.id
}
