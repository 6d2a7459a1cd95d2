// Command jobexecd is the process entry point of spec.md §4: it wires the
// store, runnable registry, scheduler, remote supervisor, housekeeper, and
// HTTP API into one lifecycle.ComponentManager and runs until SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"
	"time"

	"oss.nandlabs.io/jobexec/cli"
	"oss.nandlabs.io/jobexec/config"
	"oss.nandlabs.io/jobexec/housekeeper"
	"oss.nandlabs.io/jobexec/httpapi"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/lifecycle"
	"oss.nandlabs.io/jobexec/remote"
	"oss.nandlabs.io/jobexec/remote/transport"
	"oss.nandlabs.io/jobexec/rest"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/scheduler"
	"oss.nandlabs.io/jobexec/secrets"
	"oss.nandlabs.io/jobexec/store"
)

var logger = l3.Get()

const version = "0.1.0"

func main() {
	app := cli.NewCLI()
	app.AddVersion(version)
	app.AddCommand(serveCommand())
	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	defaultPort := config.GetEnvAsString("JOBEXEC_PORT", "8080")
	defaultHost := config.GetEnvAsString("JOBEXEC_HOST", "0.0.0.0")
	defaultSecretsFile := config.GetEnvAsString("JOBEXEC_SECRETS_FILE", "jobexec-secrets.json")

	cmd := cli.NewCommand("serve", "start the jobexecd service", version, runServe)
	cmd.Flags = []*cli.Flag{
		{Name: "host", Usage: "listen host", Aliases: []string{"host"}, Default: defaultHost},
		{Name: "port", Usage: "listen port", Aliases: []string{"p", "port"}, Default: defaultPort},
		{Name: "secrets-file", Usage: "path to the remote-executor credential store", Aliases: []string{"secrets-file"}, Default: defaultSecretsFile},
	}
	return cmd
}

func runServe(ctx *cli.Context) error {
	host, _ := ctx.GetFlag("host")
	portStr, _ := ctx.GetFlag("port")
	secretsFile, _ := ctx.GetFlag("secrets-file")

	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port <= 0 {
		port, _ = config.GetEnvAsInt("JOBEXEC_PORT", 8080)
	}

	sweepInterval, _ := config.GetEnvAsInt64("JOBEXEC_SWEEP_INTERVAL_SECONDS", int64(housekeeper.DefaultSweepInterval/time.Second))
	retentionDays, _ := config.GetEnvAsInt64("JOBEXEC_RETENTION_DAYS", int64(housekeeper.DefaultRetentionAge/(24*time.Hour)))
	pollIntervalMs, _ := config.GetEnvAsInt64("JOBEXEC_REMOTE_POLL_INTERVAL_MS", int64(remote.DefaultPollInterval/time.Millisecond))
	masterKey := config.GetEnvAsString("JOBEXEC_SECRETS_MASTER_KEY", "")

	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()

	sched := scheduler.New(st, registry, scheduler.Options{})

	credStore, err := secrets.NewLocalStore(secretsFile, masterKey)
	if err != nil {
		return fmt.Errorf("jobexecd: opening secrets store: %w", err)
	}
	// poster is handed to each remote.Runnable at job-registration time; remote
	// jobs listed in JOBEXEC_JOBS_FILE are registered here, any others by the embedding code.
	poster := transport.NewPoster(credStore)
	if err := registerRemoteJobs(registry, sched, poster, st); err != nil {
		return fmt.Errorf("jobexecd: registering remote jobs: %w", err)
	}

	supervisor := remote.New(st, registry, sched.ExecutionEnabledFlag(), time.Duration(pollIntervalMs)*time.Millisecond)

	hk := housekeeper.New(st, registry, sched, housekeeper.Options{
		SweepInterval: time.Duration(sweepInterval) * time.Second,
		RetentionAge:  time.Duration(retentionDays) * 24 * time.Hour,
	})

	srvOpts := &rest.Options{
		Id:         "jobexecd",
		ListenHost: host,
		ListenPort: int16(port),
	}
	apiSrv, err := httpapi.NewServer(sched, st, registry, srvOpts)
	if err != nil {
		return fmt.Errorf("jobexecd: building http api: %w", err)
	}

	manager := lifecycle.NewSimpleComponentManager()
	manager.Register(sched)
	manager.Register(supervisor)
	manager.Register(hk)
	manager.Register(apiSrv)

	logger.InfoF("jobexecd: starting on %s:%d", host, port)
	manager.StartAndWait()
	return nil
}
