package httpapi

import (
	"time"

	"oss.nandlabs.io/jobexec/collections"
	"oss.nandlabs.io/jobexec/store"
)

// globalStatus is the body of GET/POST /jobs/status and /jobs/enable|disable
// (spec.md §6.1: `{ "status": "enabled"|"disabled", "localRunningJobs": <bool> }`).
type globalStatus struct {
	Status           string `json:"status" xml:"status"`
	LocalRunningJobs bool   `json:"localRunningJobs" xml:"localRunningJobs"`
}

// jobEnabledStatus is the body of POST /jobs/{name}/enable|disable.
type jobEnabledStatus struct {
	Name    string `json:"name" xml:"name"`
	Enabled bool   `json:"enabled" xml:"enabled"`
}

// recordView is the wire shape of a JobRecord (JSON/XML), flattening
// Parameters/AdditionalData into plain maps for a friendlier response body.
type recordView struct {
	ID             string            `json:"id" xml:"id"`
	Name           string            `json:"name" xml:"name"`
	Host           string            `json:"host" xml:"host"`
	Thread         string            `json:"thread" xml:"thread"`
	State          string            `json:"state" xml:"state"`
	Priority       string            `json:"priority" xml:"priority"`
	ResultCode     string            `json:"resultCode,omitempty" xml:"resultCode,omitempty"`
	ResultMessage  string            `json:"resultMessage,omitempty" xml:"resultMessage,omitempty"`
	StatusMessage  string            `json:"statusMessage,omitempty" xml:"statusMessage,omitempty"`
	CreatedAt      string            `json:"createdAt" xml:"createdAt"`
	StartedAt      string            `json:"startedAt,omitempty" xml:"startedAt,omitempty"`
	FinishedAt     string            `json:"finishedAt,omitempty" xml:"finishedAt,omitempty"`
	LastModifiedAt string            `json:"lastModifiedAt" xml:"lastModifiedAt"`
	Parameters     map[string]string `json:"parameters,omitempty" xml:"parameters,omitempty"`
	AdditionalData map[string]string `json:"additionalData,omitempty" xml:"additionalData,omitempty"`
	LogLines       []string          `json:"logLines,omitempty" xml:"logLines,omitempty"`
	AbortRequested bool              `json:"abortRequested" xml:"abortRequested"`
}

func toRecordView(rec *store.JobRecord) *recordView {
	if rec == nil {
		return nil
	}
	v := &recordView{
		ID:             rec.ID,
		Name:           rec.Name,
		Host:           rec.Host,
		Thread:         rec.Thread,
		State:          rec.State.String(),
		Priority:       rec.Priority.String(),
		ResultCode:     rec.ResultCode.String(),
		ResultMessage:  rec.ResultMessage,
		StatusMessage:  rec.StatusMessage,
		CreatedAt:      formatTime(rec.CreatedAt),
		StartedAt:      formatTime(rec.StartedAt),
		FinishedAt:     formatTime(rec.FinishedAt),
		LastModifiedAt: formatTime(rec.LastModifiedAt),
		AbortRequested: rec.AbortRequested,
	}
	if rec.Parameters != nil {
		v.Parameters = orderedMapToPlain(rec.Parameters)
	}
	if rec.AdditionalData != nil {
		v.AdditionalData = orderedMapToPlain(rec.AdditionalData)
	}
	for _, l := range rec.LogLines {
		v.LogLines = append(v.LogLines, l.Text)
	}
	return v
}

func orderedMapToPlain(m *collections.OrderedMap[string]) map[string]string {
	out := make(map[string]string)
	m.Range(func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
