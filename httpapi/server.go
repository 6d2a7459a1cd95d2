// Package httpapi is the HTTP/API surface of spec.md §6.1: the /jobs
// resource tree for the read path and control plane, built on rest.Server,
// turbo, codec, and a hand-written Atom encoder.
package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"oss.nandlabs.io/jobexec/codec"
	"oss.nandlabs.io/jobexec/ioutils"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/messaging"
	"oss.nandlabs.io/jobexec/rest"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/scheduler"
	"oss.nandlabs.io/jobexec/store"
)

var logger = l3.Get()

const jobsBasePath = "/jobs"

// api closes over the components the handlers need; it is not exported —
// routes are wired onto the rest.Server by NewServer.
type api struct {
	scheduler *scheduler.Scheduler
	store     store.Store
	registry  *runnable.Registry
}

// NewServer builds a rest.Server configured with every route of spec.md
// §6.1 and returns it unstarted; the caller (cmd/jobexecd) wires its
// lifecycle.Component into the process's ComponentManager alongside the
// scheduler, remote supervisor, and housekeeper.
func NewServer(sched *scheduler.Scheduler, st store.Store, registry *runnable.Registry, opts *rest.Options) (rest.Server, error) {
	srv, err := rest.NewServer(opts)
	if err != nil {
		return nil, err
	}
	a := &api{scheduler: sched, store: st, registry: registry}
	if err := a.registerRoutes(srv); err != nil {
		return nil, err
	}
	if err := messaging.Get().AddListener(lifecycleURL(), a.logTransition); err != nil {
		logger.WarnF("httpapi: subscribing to %s: %v", store.LifecycleTopic, err)
	}
	return srv, nil
}

// lifecycleURL mirrors scheduler.lifecycleURL: the topic every successful
// state transition is published to (store.LifecycleTopic).
func lifecycleURL() *url.URL {
	return &url.URL{Scheme: messaging.LocalMsgScheme, Host: store.LifecycleTopic}
}

// logTransition is the read API's lifecycle-topic subscriber (SPEC_FULL.md
// §4.3 wiring note): it never learns about the scheduler directly, only the
// published event, and logs it so the read surface's own log stream carries
// the same transitions a client would see by re-polling /jobs/{name}/{id}.
func (a *api) logTransition(msg messaging.Message) {
	name, _ := msg.GetStrHeader("name")
	id, _ := msg.GetStrHeader("id")
	state, _ := msg.GetStrHeader("state")
	logger.TraceF("httpapi: observed %s %s -> %s", name, id, state)
}

func (a *api) registerRoutes(srv rest.Server) error {
	type route struct {
		method  string
		path    string
		handler rest.HandlerFunc
	}
	routes := []route{
		{http.MethodGet, jobsBasePath, a.listJobs},
		{http.MethodPost, jobsBasePath + "/enable", a.setGlobalEnabled(true)},
		{http.MethodPost, jobsBasePath + "/disable", a.setGlobalEnabled(false)},
		{http.MethodGet, jobsBasePath + "/status", a.globalStatus},
		{http.MethodGet, jobsBasePath + "/history", a.history},
		{http.MethodPost, jobsBasePath + "/{name}", a.executeJob},
		{http.MethodGet, jobsBasePath + "/{name}", a.jobHistory},
		{http.MethodPost, jobsBasePath + "/{name}/enable", a.setJobEnabled(true)},
		{http.MethodPost, jobsBasePath + "/{name}/disable", a.setJobEnabled(false)},
		{http.MethodGet, jobsBasePath + "/{name}/{id}", a.getRecord},
		{http.MethodPost, jobsBasePath + "/{name}/{id}/abort", a.abortJob},
	}
	for _, r := range routes {
		if _, err := srv.AddRoute(r.path, r.handler, r.method); err != nil {
			return err
		}
	}
	return nil
}

// writeJSONStatus writes data as JSON with an explicit status code.
// ctx.WriteJSON alone cannot be combined with ctx.SetStatusCode: SetStatusCode
// calls http.ResponseWriter.WriteHeader immediately, and net/http silently
// drops header writes (like WriteJSON's Content-Type) made after that call.
// Setting the Content-Type header first, then the status, then encoding the
// body keeps the two in the order net/http requires.
func writeJSONStatus(ctx rest.Context, status int, data interface{}) {
	ctx.SetHeader(rest.ContentTypeHeader, ioutils.MimeApplicationJSON)
	ctx.SetStatusCode(status)
	c, err := codec.GetDefault(ioutils.MimeApplicationJSON)
	if err != nil {
		logger.ErrorF("httpapi: no json codec: %v", err)
		return
	}
	if err := c.Write(data, ctx.HttpResWriter()); err != nil {
		logger.WarnF("httpapi: writing json response: %v", err)
	}
}

func writeErr(ctx rest.Context, err error) {
	writeJSONStatus(ctx, statusFor(err), map[string]string{"error": err.Error()})
}

// wantsAtom reports whether the client asked for the list/history media
// types as Atom (the default per spec.md §6.1) rather than JSON/XML.
func wantsAtom(ctx rest.Context) bool {
	accept := ctx.GetHeader("Accept")
	return accept == "" || accept == "*/*" || strings.Contains(accept, atomContentType)
}
