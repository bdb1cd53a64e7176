package orchestrator

import "time"

// armWatchdog starts the discovery timeout once the source is listening.
// Reconnects do not restart it.
func (o *Orchestrator) armWatchdog(endpoint string) {
	if o.state != AwaitingFirstReading || o.completed || o.watchdog != nil || o.timeout <= 0 {
		return
	}
	o.watchdogEndpoint = endpoint
	o.watchdog = time.NewTimer(o.timeout)
}

func (o *Orchestrator) stopWatchdog() {
	if o.watchdog != nil {
		o.watchdog.Stop()
		o.watchdog = nil
	}
}

func (o *Orchestrator) stopTimers() {
	o.stopWatchdog()
	if o.ticker != nil {
		o.ticker.Stop()
	}
}

// A nil channel blocks forever, which keeps an unarmed timer out of select.
func (o *Orchestrator) watchdogC() <-chan time.Time {
	if o.watchdog == nil {
		return nil
	}
	return o.watchdog.C
}

func (o *Orchestrator) tickC() <-chan time.Time {
	if o.ticker == nil {
		return nil
	}
	return o.ticker.C
}
