package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"strings"
	"sync"

	"oss.nandlabs.io/jobexec/clients"
	"oss.nandlabs.io/jobexec/collections"
	"oss.nandlabs.io/jobexec/rest"
	"oss.nandlabs.io/jobexec/secrets"
)

// linkHeaderURI extracts the URI between angle brackets of an RFC 5988
// Link header, e.g. `</jobs/abc>; rel="self"` -> "/jobs/abc".
var linkHeaderURI = regexp.MustCompile(`<([^>]+)>`)

// Poster is the client side of spec.md §6.2: it packages scripts, posts
// them to a remote executor, and polls/stops the resulting job URI.
//
// rest.Client's own multipart helper (Request.SetMultipartFiles) only
// accepts file-path-based parts, which cannot express the in-memory
// "params" JSON part spec.md §6.2 requires alongside the binary archive.
// Poster therefore builds the multipart/form-data body itself with the
// stdlib mime/multipart.Writer (see DESIGN.md) and hands the finished
// buffer to Request.SeBodyReader, keeping everything else — circuit
// breaker, retry, auth handler wiring — on rest.Client.
type Poster struct {
	creds secrets.Store

	mu      sync.Mutex
	clients map[string]*rest.Client
}

// NewPoster creates a Poster resolving per-host credentials from creds.
// creds may be nil, in which case requests are sent unauthenticated.
func NewPoster(creds secrets.Store) *Poster {
	return &Poster{creds: creds, clients: make(map[string]*rest.Client)}
}

func (p *Poster) clientFor(baseURI string) (*rest.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[baseURI]; ok {
		return c, nil
	}

	builder := rest.RestCliOptBuilder().RequestTimeoutMs(20_000)
	if err := builder.BaseUrl(baseURI); err != nil {
		return nil, fmt.Errorf("transport: invalid base uri %q: %w", baseURI, err)
	}
	if p.creds != nil {
		if cred, err := p.creds.Get(baseURI, context.Background()); err == nil && cred != nil {
			builder = builder.Auth(clients.NewBearerAuth(cred.Str()))
		}
	}

	c := rest.NewClientWithOptions(builder.Build())
	p.clients[baseURI] = c
	return c, nil
}

func multipartBody(name, id string, parameters *collections.OrderedMap[string], archive []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	scriptHeader := textproto.MIMEHeader{}
	scriptHeader.Set("Content-Disposition", `form-data; name="scripts"; filename="scripts.tar.gz"`)
	scriptHeader.Set(rest.ContentTypeHeader, "application/octet-stream")
	scriptPart, err := w.CreatePart(scriptHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := scriptPart.Write(archive); err != nil {
		return nil, "", err
	}

	params := StartParams{Name: name, ID: id, Parameters: make(map[string]string)}
	if parameters != nil {
		for _, k := range parameters.Keys() {
			v, _ := parameters.Get(k)
			params.Parameters[k] = v
		}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, "", err
	}

	paramsHeader := textproto.MIMEHeader{}
	paramsHeader.Set("Content-Disposition", `form-data; name="params"`)
	paramsHeader.Set(rest.ContentTypeHeader, "application/json; charset=UTF-8")
	paramsPart, err := w.CreatePart(paramsHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := paramsPart.Write(paramsJSON); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Start posts name/id's scripts to <baseURI>/<name>/start (spec.md §6.2).
// resumed reports whether the remote reported an already-running job
// (200/303) rather than a fresh start (201).
func (p *Poster) Start(ctx context.Context, baseURI, name, id string, scripts map[string][]byte, parameters *collections.OrderedMap[string]) (jobURI string, resumed bool, err error) {
	archive, err := BuildScriptArchive(scripts)
	if err != nil {
		return "", false, err
	}
	body, contentType, err := multipartBody(name, id, parameters, archive)
	if err != nil {
		return "", false, err
	}

	client, err := p.clientFor(baseURI)
	if err != nil {
		return "", false, err
	}
	req, err := client.NewRequest(strings.TrimSuffix(baseURI, "/")+"/"+name+"/start", http.MethodPost)
	if err != nil {
		return "", false, err
	}
	if _, err = req.WithContext(ctx); err != nil {
		return "", false, err
	}
	req.SeBodyReader(bytes.NewReader(body)).SetContentType(contentType)

	res, err := client.Execute(req)
	if err != nil {
		return "", false, err
	}

	switch res.StatusCode() {
	case http.StatusCreated:
		jobURI, err = extractLinkURI(res)
		return jobURI, false, err
	case http.StatusOK, http.StatusSeeOther:
		jobURI, err = extractLinkURI(res)
		return jobURI, true, err
	default:
		return "", false, fmt.Errorf("%w: status %d", ErrJobExecutionException, res.StatusCode())
	}
}

func extractLinkURI(res *rest.Response) (string, error) {
	link := res.Header("Link")
	if link == "" {
		return "", fmt.Errorf("%w: response carried no Link header", ErrJobExecutionException)
	}
	m := linkHeaderURI.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("%w: unparsable Link header %q", ErrJobExecutionException, link)
	}
	return m[1], nil
}

// Status fetches the RemoteJobStatus from jobURI (spec.md §4.4).
func (p *Poster) Status(ctx context.Context, baseURI, jobURI string) (*RemoteJobStatus, error) {
	client, err := p.clientFor(baseURI)
	if err != nil {
		return nil, err
	}
	req, err := client.NewRequest(jobURI, http.MethodGet)
	if err != nil {
		return nil, err
	}
	if _, err = req.WithContext(ctx); err != nil {
		return nil, err
	}
	res, err := client.Execute(req)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d polling %s", ErrJobExecutionException, res.StatusCode(), jobURI)
	}
	var status RemoteJobStatus
	if err := res.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stop posts to <jobURI>/stop. A 403 response maps to ErrRemoteJobNotRunning
// rather than a hard error (spec.md §4.3.1).
func (p *Poster) Stop(ctx context.Context, baseURI, jobURI string) error {
	client, err := p.clientFor(baseURI)
	if err != nil {
		return err
	}
	req, err := client.NewRequest(strings.TrimSuffix(jobURI, "/")+"/stop", http.MethodPost)
	if err != nil {
		return err
	}
	if _, err = req.WithContext(ctx); err != nil {
		return err
	}
	res, err := client.Execute(req)
	if err != nil {
		return err
	}
	if res.StatusCode() == http.StatusForbidden {
		return ErrRemoteJobNotRunning
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: status %d stopping %s", ErrJobExecutionException, res.StatusCode(), jobURI)
	}
	return nil
}

// Liveness performs a GET on baseURI (spec.md §6.2).
func (p *Poster) Liveness(ctx context.Context, baseURI string) error {
	client, err := p.clientFor(baseURI)
	if err != nil {
		return err
	}
	req, err := client.NewRequest(baseURI, http.MethodGet)
	if err != nil {
		return err
	}
	if _, err = req.WithContext(ctx); err != nil {
		return err
	}
	res, err := client.Execute(req)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: liveness check on %s returned %d", ErrJobExecutionException, baseURI, res.StatusCode())
	}
	return nil
}
