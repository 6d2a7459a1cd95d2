package scheduler

import (
	"net/url"

	"oss.nandlabs.io/jobexec/messaging"
	"oss.nandlabs.io/jobexec/store"
)

// lifecycleURL builds the URL every successful state transition is
// published to (store.LifecycleTopic). Subscribers (the HTTP API, the
// housekeeper's logging) never learn about the scheduler directly — they
// just listen on this topic.
func lifecycleURL() *url.URL {
	return &url.URL{Scheme: messaging.LocalMsgScheme, Host: store.LifecycleTopic}
}

// publishTransition best-effort publishes a job.lifecycle event. Publication
// failures (e.g. a full channel buffer) are logged and otherwise ignored —
// the store remains the source of truth, this bus is a convenience for
// observers.
func (s *Scheduler) publishTransition(name, id string, newState store.RunningState) {
	msg, err := messaging.Get().NewMessage(messaging.LocalMsgScheme)
	if err != nil {
		logger.WarnF("scheduler: could not create lifecycle message for %s: %v", name, err)
		return
	}
	msg.SetStrHeader("name", name)
	msg.SetStrHeader("id", id)
	msg.SetStrHeader("state", newState.String())
	if err := messaging.Get().Send(lifecycleURL(), msg); err != nil {
		logger.TraceF("scheduler: lifecycle publish for %s dropped: %v", name, err)
	}
}
