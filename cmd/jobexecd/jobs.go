package main

import (
	"path"

	"oss.nandlabs.io/jobexec/codec"
	"oss.nandlabs.io/jobexec/config"
	"oss.nandlabs.io/jobexec/ioutils"
	"oss.nandlabs.io/jobexec/remote"
	"oss.nandlabs.io/jobexec/remote/transport"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/scheduler"
	"oss.nandlabs.io/jobexec/store"
	"oss.nandlabs.io/jobexec/vfs"
)

// remoteJobConfig is one entry of the JSON/YAML file JOBEXEC_JOBS_FILE
// points at: the static description of a remote job this process supervises
// (spec.md §6.2). Local jobs have no generic description — they are
// registered programmatically by whatever embeds this package — so only
// remote jobs are bootstrapped from config here.
type remoteJobConfig struct {
	Name              string            `json:"name" yaml:"name"`
	BaseURI           string            `json:"baseUri" yaml:"baseUri"`
	MaxExecutionMs    int64             `json:"maxExecutionMs" yaml:"maxExecutionMs"`
	MaxIdleMs         int64             `json:"maxIdleMs" yaml:"maxIdleMs"`
	PollingIntervalMs int64             `json:"pollingIntervalMs" yaml:"pollingIntervalMs"`
	Abortable         bool              `json:"abortable" yaml:"abortable"`
	Scripts           map[string]string `json:"scripts" yaml:"scripts"` // file name -> inline script body
}

// registerRemoteJobs loads JOBEXEC_JOBS_FILE, if set, and registers each
// entry as a remote.Runnable against sched. Absence of the env var is not an
// error: a deployment may register every job itself before calling serve.
func registerRemoteJobs(registry *runnable.Registry, sched *scheduler.Scheduler, poster *transport.Poster, st store.Store) error {
	jobsFile := config.GetEnvAsString("JOBEXEC_JOBS_FILE", "")
	if jobsFile == "" {
		return nil
	}

	f, err := vfs.GetManager().OpenRaw(jobsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	mimeType := ioutils.GetMimeFromExt(path.Ext(jobsFile))
	c, err := codec.GetDefault(mimeType)
	if err != nil {
		return err
	}

	var defs []remoteJobConfig
	if err := c.Read(f, &defs); err != nil {
		return err
	}

	for _, d := range defs {
		scripts := make(remote.StaticScripts, len(d.Scripts))
		for name, body := range d.Scripts {
			scripts[name] = []byte(body)
		}
		r := remote.NewRunnable(d.Name, d.BaseURI, d.MaxExecutionMs, d.MaxIdleMs, d.PollingIntervalMs, d.Abortable, scripts, poster, st)
		if !sched.RegisterJob(r) {
			logger.WarnF("jobexecd: remote job %s already registered, skipping", d.Name)
		}
	}
	return nil
}
