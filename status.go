package offline

import "fmt"

// StatusState is the coarse condition surfaced to guard UIs.
type StatusState string

const (
	StatusOffline StatusState = "offline"
	StatusSyncing StatusState = "syncing"
	StatusWarning StatusState = "warning"
	StatusOnline  StatusState = "online"
)

// Severity colors surfaced alongside the status.
const (
	colorOffline   = "#FFA347"
	colorSyncing   = "#F4D06F"
	colorWarning   = "#FFAA00"
	colorEmergency = "#FF0000"
	colorOnline    = "#9DD9D2"
)

// Status is the observable queue condition: a pure function of connectivity,
// queue depth and breaker state. Guard UIs must be able to recompute it at
// any frequency, so computing a Status never mutates the queue.
type Status struct {
	State   StatusState `json:"state"`
	Message string      `json:"message"`
	Color   string      `json:"color"`
	Pending int         `json:"pending"`
}

// ComputeStatus maps the current queue condition to a Status. The three
// materially different degraded situations stay distinguishable: offline
// with queued work (wait), online but struggling (worry), and breaker
// engaged (automatic safety net running).
func ComputeStatus(quality ConnectionQuality, pending int, syncing, paused bool, warningThreshold int) Status {
	switch {
	case paused:
		return Status{
			State:   StatusWarning,
			Message: fmt.Sprintf("queue grew dangerously large (%d actions) - emergency cleanup engaged", pending),
			Color:   colorEmergency,
			Pending: pending,
		}
	case quality == QualityOffline:
		return Status{
			State:   StatusOffline,
			Message: fmt.Sprintf("offline - %d action(s) will sync once reconnected", pending),
			Color:   colorOffline,
			Pending: pending,
		}
	case syncing:
		return Status{
			State:   StatusSyncing,
			Message: fmt.Sprintf("syncing %d action(s)...", pending),
			Color:   colorSyncing,
			Pending: pending,
		}
	case pending > warningThreshold:
		return Status{
			State:   StatusWarning,
			Message: fmt.Sprintf("%d action(s) pending - sync is struggling to keep up", pending),
			Color:   colorWarning,
			Pending: pending,
		}
	case pending > 0:
		return Status{
			State:   StatusOnline,
			Message: fmt.Sprintf("connected - %d action(s) pending", pending),
			Color:   colorOnline,
			Pending: pending,
		}
	default:
		return Status{
			State:   StatusOnline,
			Message: "connected",
			Color:   colorOnline,
		}
	}
}
