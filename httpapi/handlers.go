package httpapi

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"oss.nandlabs.io/jobexec/collections"
	"oss.nandlabs.io/jobexec/rest"
	"oss.nandlabs.io/jobexec/store"
)

func writeAtom(ctx rest.Context, feed *atomFeed) {
	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		writeErr(ctx, err)
		return
	}
	ctx.SetContentType(atomContentType)
	_, _ = ctx.WriteData(append([]byte(xml.Header), body...))
}

// listJobs implements GET /jobs.
func (a *api) listJobs(ctx rest.Context) {
	defs, err := a.store.ListDefinitions()
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if !wantsAtom(ctx) {
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		_ = ctx.WriteJSON(names)
		return
	}
	writeAtom(ctx, jobNamesFeed(jobsBasePath, defs))
}

// setGlobalEnabled implements POST /jobs/enable and /jobs/disable.
func (a *api) setGlobalEnabled(enabled bool) rest.HandlerFunc {
	return func(ctx rest.Context) {
		a.scheduler.SetExecutionEnabled(enabled)
		a.writeGlobalStatus(ctx)
	}
}

// globalStatus implements GET /jobs/status.
func (a *api) globalStatus(ctx rest.Context) {
	a.writeGlobalStatus(ctx)
}

func (a *api) writeGlobalStatus(ctx rest.Context) {
	status := "enabled"
	if !a.scheduler.ExecutionEnabledFlag().Load() {
		status = "disabled"
	}
	running := false
	for _, r := range a.registry.All() {
		if r.IsRemote() {
			continue
		}
		if rec, err := a.store.FindByNameAndState(r.Name(), store.Running); err == nil && rec != nil {
			running = true
			break
		}
	}
	_ = ctx.WriteJSON(globalStatus{Status: status, LocalRunningJobs: running})
}

// executeJob implements POST /jobs/{name}: every query parameter becomes one
// job parameter; a multi-valued or empty parameter is a 400 (spec.md §6.1).
func (a *api) executeJob(ctx rest.Context) {
	name, err := ctx.GetParam("name", rest.PathParam)
	if err != nil {
		writeErr(ctx, err)
		return
	}

	params := collections.NewOrderedMap[string]()
	for key, values := range ctx.GetRequest().URL.Query() {
		if len(values) != 1 || values[0] == "" {
			writeJSONStatus(ctx, http.StatusBadRequest, map[string]string{
				"error": "query parameter " + key + " must have exactly one non-empty value",
			})
			return
		}
		params.Put(key, values[0])
	}

	id, err := a.scheduler.ExecuteJob(name, store.ForceExecution, params)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	location := jobsBasePath + "/" + name + "/" + id
	ctx.SetHeader("Location", location)
	writeJSONStatus(ctx, http.StatusCreated, map[string]string{"id": id, "location": location})
}

// jobHistory implements GET /jobs/{name}?size=N.
func (a *api) jobHistory(ctx rest.Context) {
	name, err := ctx.GetParam("name", rest.PathParam)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	size := 10
	if raw, err := ctx.GetParam("size", rest.QueryParam); err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			size = n
		}
	}
	records, err := a.store.FindByName(name, size)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if !wantsAtom(ctx) {
		views := make([]*recordView, 0, len(records))
		for _, rec := range records {
			views = append(views, toRecordView(rec))
		}
		_ = ctx.WriteJSON(views)
		return
	}
	writeAtom(ctx, jobHistoryFeed(jobsBasePath, name, records))
}

// setJobEnabled implements POST /jobs/{name}/enable and /disable.
func (a *api) setJobEnabled(enabled bool) rest.HandlerFunc {
	return func(ctx rest.Context) {
		name, err := ctx.GetParam("name", rest.PathParam)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		if err := a.scheduler.SetJobExecutionEnabled(name, enabled); err != nil {
			writeErr(ctx, err)
			return
		}
		_ = ctx.WriteJSON(jobEnabledStatus{Name: name, Enabled: enabled})
	}
}

// getRecord implements GET /jobs/{name}/{id}.
func (a *api) getRecord(ctx rest.Context) {
	id, err := ctx.GetParam("id", rest.PathParam)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	rec, err := a.store.FindByID(id)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if rec == nil {
		writeJSONStatus(ctx, http.StatusNotFound, map[string]string{"error": "no such record"})
		return
	}
	_ = ctx.WriteJSON(toRecordView(rec))
}

// abortJob implements POST /jobs/{name}/{id}/abort.
func (a *api) abortJob(ctx rest.Context) {
	name, err := ctx.GetParam("name", rest.PathParam)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	id, err := ctx.GetParam("id", rest.PathParam)
	if err != nil {
		writeErr(ctx, err)
		return
	}
	if err := a.scheduler.AbortJob(name, id); err != nil {
		writeErr(ctx, err)
		return
	}
	_ = ctx.WriteJSON(map[string]string{"name": name, "id": id, "aborted": "true"})
}

// history implements GET /jobs/history?hours=H&resultCode=...&jobName=....
func (a *api) history(ctx rest.Context) {
	hours := 24
	if raw, err := ctx.GetParam("hours", rest.QueryParam); err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			hours = n
		}
	}
	to := schedulerNow()
	from := to.Add(-time.Duration(hours) * time.Hour)

	var resultCodes []store.ResultCode
	if raw, err := ctx.GetParam("resultCode", rest.QueryParam); err == nil && raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if rc, ok := parseResultCode(part); ok {
				resultCodes = append(resultCodes, rc)
			}
		}
	}

	var names []string
	if raw, err := ctx.GetParam("jobName", rest.QueryParam); err == nil && raw != "" {
		names = []string{raw}
	} else {
		defs, defErr := a.store.ListDefinitions()
		if defErr != nil {
			writeErr(ctx, defErr)
			return
		}
		for _, d := range defs {
			names = append(names, d.Name)
		}
	}

	out := make(map[string][]*recordView, len(names))
	for _, name := range names {
		records, err := a.store.FindByNameAndTimeRange(name, from, to, resultCodes...)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		views := make([]*recordView, 0, len(records))
		for _, rec := range records {
			views = append(views, toRecordView(rec))
		}
		out[name] = views
	}
	_ = ctx.WriteJSON(out)
}

var schedulerNow = time.Now

func parseResultCode(s string) (store.ResultCode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESSFUL":
		return store.Successful, true
	case "FAILED":
		return store.Failed, true
	case "NOT_EXECUTED":
		return store.NotExecuted, true
	case "TIMED_OUT":
		return store.TimedOut, true
	case "ABORTED":
		return store.Aborted, true
	default:
		return store.NoResult, false
	}
}
