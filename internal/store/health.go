package store

import (
	"context"

	"github.com/looplab/fsm"
)

// Connection health states.
const (
	HealthConnecting = "connecting"
	HealthConnected  = "connected"
	HealthError      = "error"
)

// health machine events
const (
	eventConnect = "connect"
	eventFail    = "fail"
	eventRetry   = "retry"
)

// newHealthFSM builds the connection health machine.
//
//	connecting --connect--> connected
//	error      --connect--> connected
//	connecting --fail-----> error
//	connected  --fail-----> error
//	connected  --retry----> connecting
//	error      --retry----> connecting
func newHealthFSM() *fsm.FSM {
	return fsm.NewFSM(
		HealthConnecting,
		fsm.Events{
			{Name: eventConnect, Src: []string{HealthConnecting, HealthError}, Dst: HealthConnected},
			{Name: eventFail, Src: []string{HealthConnecting, HealthConnected}, Dst: HealthError},
			{Name: eventRetry, Src: []string{HealthConnected, HealthError}, Dst: HealthConnecting},
		},
		fsm.Callbacks{},
	)
}

// transition fires event on the machine and reports whether the state moved.
// Events that are not valid from the current state are ignored.
func transition(m *fsm.FSM, event string) bool {
	before := m.Current()
	if err := m.Event(context.Background(), event); err != nil {
		return false
	}
	return m.Current() != before
}
