package rest

import (
	"io"
	"net/http"

	"oss.nandlabs.io/jobexec/codec"
)

// Response wraps the raw *http.Response returned by Client.Execute, adding
// the content-negotiated decode helpers its callers (such as the oauth2
// token exchange) use.
type Response struct {
	raw    *http.Response
	client *Client
	body   []byte
	read   bool
}

// Raw returns the underlying *http.Response.
func (r *Response) Raw() *http.Response {
	return r.raw
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	if r.raw == nil {
		return 0
	}
	return r.raw.StatusCode
}

// Status returns the HTTP status line (e.g. "200 OK").
func (r *Response) Status() string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Status
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	code := r.StatusCode()
	return code >= 200 && code < 300
}

// Header returns the named response header's first value.
func (r *Response) Header(key string) string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Header.Get(key)
}

// Body reads and caches the full response body, closing the underlying
// reader on first read. Safe to call more than once.
func (r *Response) Body() ([]byte, error) {
	if r.read {
		return r.body, nil
	}
	if r.raw == nil || r.raw.Body == nil {
		r.read = true
		return nil, nil
	}
	defer r.raw.Body.Close()
	b, err := io.ReadAll(r.raw.Body)
	if err != nil {
		return nil, err
	}
	r.body = b
	r.read = true
	return r.body, nil
}

// Decode reads the body and unmarshals it into out using the codec
// registered for the response's Content-Type header, defaulting to JSON
// when the header is absent.
func (r *Response) Decode(out interface{}) error {
	b, err := r.Body()
	if err != nil {
		return err
	}
	contentType := r.Header(ContentTypeHeader)
	if contentType == "" {
		contentType = JSONContentType
	}
	c, err := codec.GetDefault(contentType)
	if err != nil {
		return err
	}
	return c.DecodeBytes(b, out)
}
