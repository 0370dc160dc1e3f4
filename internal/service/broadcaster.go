package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToRun(runID string, msgType string, payload interface{})
	CloseRun(runID string)
}

// Message types pushed to run subscribers
const (
	MsgAdministrationCompleted = "administration_completed"
	MsgRunCompleted            = "run_completed"
)

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToRun(string, string, interface{}) {}
func (noopBroadcaster) CloseRun(string)                            {}
