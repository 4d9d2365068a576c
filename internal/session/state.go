package session

// State is the connection state of one tenant's messaging-network session.
// Exactly one state is active per tenant at any time; all transitions happen
// under the Manager's lock.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateInitializing  State = "initializing"
	StateQRPending     State = "qr_pending"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateReconnecting  State = "reconnecting"

	// StateLoggedOut is terminal until an operator re-authenticates with a
	// fresh QR bootstrap.
	StateLoggedOut State = "logged_out"

	// StateFailed is terminal after the reconnect budget is exhausted.
	StateFailed State = "failed"
)

// Terminal reports whether the state needs operator action to leave.
func (s State) Terminal() bool {
	return s == StateLoggedOut || s == StateFailed
}

func (s State) String() string { return string(s) }
