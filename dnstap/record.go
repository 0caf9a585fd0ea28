package dnstap

import "time"

// Policy describes the decision a policy engine (e.g. an RPZ or firewall
// layer) applied to a query or response. It is optional on a Message.
type Policy struct {
	Type   string
	Rule   []byte
	Action PolicyAction
	Match  PolicyMatch
	Value  []byte

	HasAction bool
	HasMatch  bool
}

// Message is the payload of a dnstap record of Type MESSAGE: one DNS
// query or response observed at one of the fourteen hook points, along with
// the socket metadata and timestamps the observer captured for it.
//
// QueryMessage and ResponseMessage are raw wire-format DNS messages; this
// package does not parse their contents.
type Message struct {
	Type MessageType

	SocketFamily      SocketFamily
	SocketProtocol    SocketProtocol
	HasSocketFamily   bool
	HasSocketProtocol bool

	QueryAddress    []byte
	ResponseAddress []byte
	QueryPort       uint32
	ResponsePort    uint32
	HasQueryPort    bool
	HasResponsePort bool

	QueryTime    time.Time
	HasQueryTime bool

	ResponseTime    time.Time
	HasResponseTime bool

	QueryMessage    []byte
	ResponseMessage []byte
	QueryZone       []byte

	Policy *Policy
}

// Record is one top-level dnstap.Dnstap payload: the Identity/Version/Extra
// fields an observer stamps on every record it emits, plus the Message it
// is reporting. Type is always TypeMessage in practice (it is the only
// kind the schema defines), but is exposed so a decoded-but-unknown Type
// round-trips instead of being silently coerced.
type Record struct {
	Type Type

	Identity []byte
	Version  []byte
	Extra    []byte

	Message *Message
}
