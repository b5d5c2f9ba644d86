package models

// Outbound event names.
const (
	EventMonitor          = "monitor"
	EventMonitorCountdown = "monitorCountdown"
	EventStopMonitor      = "stopMonitor"
)

// Event is an event-tagged payload delivered to subscribers.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Rejection is returned when a monitor cannot be started.
type Rejection struct {
	Error  string `json:"error"`
	Status *int   `json:"status"`
}

// MonitorEvent wraps a snapshot.
func MonitorEvent(overview StatusOverview) Event {
	return Event{Event: EventMonitor, Data: overview}
}

// CountdownEvent wraps the remaining seconds. A nil value signals that no
// countdown is running.
func CountdownEvent(remaining *int) Event {
	if remaining == nil {
		return Event{Event: EventMonitorCountdown, Data: nil}
	}
	return Event{Event: EventMonitorCountdown, Data: *remaining}
}

// StopEvent acknowledges a stop request.
func StopEvent(message string) Event {
	return Event{Event: EventStopMonitor, Data: message}
}
