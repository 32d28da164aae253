package channel

// State is the connection lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

type eventKind int

const (
	evConnect eventKind = iota
	evOpened
	evFailed
	evReconnectDue
	evClose
)

func (k eventKind) String() string {
	switch k {
	case evConnect:
		return "connect"
	case evOpened:
		return "opened"
	case evFailed:
		return "failed"
	case evReconnectDue:
		return "reconnect_due"
	case evClose:
		return "close"
	default:
		return "unknown"
	}
}

type effect int

const (
	effectNone effect = iota
	// effectDialInitial starts the first dial after the initial delay
	effectDialInitial
	// effectDial dials immediately
	effectDial
	effectScheduleReconnect
	effectGiveUp
	effectShutdown
)

// machine is the pure connection state.
type machine struct {
	state     State
	attempts  int
	manual    bool
	exhausted bool
}

// transition applies ev to m. It never performs I/O.
func transition(m machine, ev eventKind, maxAttempts int) (machine, effect) {
	switch ev {
	case evConnect:
		if m.state != StateIdle {
			return m, effectNone
		}
		return machine{state: StateConnecting}, effectDialInitial

	case evOpened:
		if m.state != StateConnecting || m.manual {
			return m, effectNone
		}
		m.state = StateConnected
		m.attempts = 0
		return m, effectNone

	case evFailed:
		if m.manual {
			m.state = StateIdle
			return m, effectNone
		}
		if m.state != StateConnecting && m.state != StateConnected {
			return m, effectNone
		}
		m.state = StateDisconnected
		if m.attempts >= maxAttempts {
			m.exhausted = true
			return m, effectGiveUp
		}
		m.attempts++
		return m, effectScheduleReconnect

	case evReconnectDue:
		if m.state != StateDisconnected || m.manual || m.exhausted {
			return m, effectNone
		}
		m.state = StateConnecting
		return m, effectDial

	case evClose:
		prev := m.state
		m.state = StateIdle
		m.manual = true
		if prev == StateIdle {
			return m, effectNone
		}
		return m, effectShutdown
	}

	return m, effectNone
}
