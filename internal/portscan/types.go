// Package portscan enumerates active TCP/UDP endpoints and the process
// that owns each one, and can kill the owner of a given local port.
package portscan

// Protocol is the transport protocol of a PortEntry.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// State is the connection state of a PortEntry. UDP has no real
// connection state machine, but a bound-not-connected UDP socket is
// reported as StateListen and a connect(2)'d one as StateEstab, since
// those are the two states an operator cares about.
type State string

const (
	StateListen    State = "listen"
	StateEstab     State = "established"
	StateTimeWait  State = "timewait"
	StateCloseWait State = "closewait"
	StateUnknown   State = "unknown"
)

// PortEntry is one observed socket-table row.
type PortEntry struct {
	Port          uint16   `json:"port"`
	Protocol      Protocol `json:"protocol"`
	State         State    `json:"state"`
	LocalAddress  string   `json:"local_address"`
	RemoteAddress string   `json:"remote_address,omitempty"`
	PID           int      `json:"pid"`
	ProcessName   string   `json:"process_name"`
}
