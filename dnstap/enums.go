// Package dnstap implements the dnstap.Dnstap payload carried by frames
// whose session declared the "protobuf:dnstap.Dnstap" content type. It
// encodes and decodes directly against the wire format using
// google.golang.org/protobuf/encoding/protowire, rather than through
// generated message types, since the parent dnswire package never
// interprets frame payloads itself.
package dnstap

// Type is the top-level kind of a Dnstap payload. MESSAGE is the only kind
// defined by the schema.
type Type uint32

const (
	TypeUnknown Type = 0
	TypeMessage Type = 1
)

// MessageType identifies which of the fourteen dnstap hook points a Message
// was captured at.
type MessageType uint32

const (
	MessageTypeUnknown           MessageType = 0
	MessageTypeAuthQuery         MessageType = 1
	MessageTypeAuthResponse      MessageType = 2
	MessageTypeResolverQuery     MessageType = 3
	MessageTypeResolverResponse  MessageType = 4
	MessageTypeClientQuery       MessageType = 5
	MessageTypeClientResponse    MessageType = 6
	MessageTypeForwarderQuery    MessageType = 7
	MessageTypeForwarderResponse MessageType = 8
	MessageTypeStubQuery         MessageType = 9
	MessageTypeStubResponse      MessageType = 10
	MessageTypeToolQuery         MessageType = 11
	MessageTypeToolResponse      MessageType = 12
	MessageTypeUpdateQuery       MessageType = 13
	MessageTypeUpdateResponse    MessageType = 14
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeAuthQuery:
		return "AUTH_QUERY"
	case MessageTypeAuthResponse:
		return "AUTH_RESPONSE"
	case MessageTypeResolverQuery:
		return "RESOLVER_QUERY"
	case MessageTypeResolverResponse:
		return "RESOLVER_RESPONSE"
	case MessageTypeClientQuery:
		return "CLIENT_QUERY"
	case MessageTypeClientResponse:
		return "CLIENT_RESPONSE"
	case MessageTypeForwarderQuery:
		return "FORWARDER_QUERY"
	case MessageTypeForwarderResponse:
		return "FORWARDER_RESPONSE"
	case MessageTypeStubQuery:
		return "STUB_QUERY"
	case MessageTypeStubResponse:
		return "STUB_RESPONSE"
	case MessageTypeToolQuery:
		return "TOOL_QUERY"
	case MessageTypeToolResponse:
		return "TOOL_RESPONSE"
	case MessageTypeUpdateQuery:
		return "UPDATE_QUERY"
	case MessageTypeUpdateResponse:
		return "UPDATE_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// SocketFamily is the address family of the query/response sockets.
type SocketFamily uint32

const (
	SocketFamilyUnknown SocketFamily = 0
	SocketFamilyINET    SocketFamily = 1
	SocketFamilyINET6   SocketFamily = 2
)

func (f SocketFamily) String() string {
	switch f {
	case SocketFamilyINET:
		return "INET"
	case SocketFamilyINET6:
		return "INET6"
	default:
		return "UNKNOWN"
	}
}

// SocketProtocol is the transport protocol of the query/response sockets.
type SocketProtocol uint32

const (
	SocketProtocolUnknown     SocketProtocol = 0
	SocketProtocolUDP         SocketProtocol = 1
	SocketProtocolTCP         SocketProtocol = 2
	SocketProtocolDOT         SocketProtocol = 3
	SocketProtocolDOH         SocketProtocol = 4
	SocketProtocolDNSCryptUDP SocketProtocol = 5
	SocketProtocolDNSCryptTCP SocketProtocol = 6
	SocketProtocolDOQ         SocketProtocol = 7
)

func (p SocketProtocol) String() string {
	switch p {
	case SocketProtocolUDP:
		return "UDP"
	case SocketProtocolTCP:
		return "TCP"
	case SocketProtocolDOT:
		return "DOT"
	case SocketProtocolDOH:
		return "DOH"
	case SocketProtocolDNSCryptUDP:
		return "DNSCryptUDP"
	case SocketProtocolDNSCryptTCP:
		return "DNSCryptTCP"
	case SocketProtocolDOQ:
		return "DOQ"
	default:
		return "UNKNOWN"
	}
}

// PolicyAction is the action a policy engine applied to a query/response.
type PolicyAction uint32

const (
	PolicyActionUnknown  PolicyAction = 0
	PolicyActionNXDomain PolicyAction = 1
	PolicyActionNoData   PolicyAction = 2
	PolicyActionPass     PolicyAction = 3
	PolicyActionDrop     PolicyAction = 4
	PolicyActionTruncate PolicyAction = 5
	PolicyActionLocal    PolicyAction = 6
)

// PolicyMatch is what a policy engine matched against to reach its action.
type PolicyMatch uint32

const (
	PolicyMatchUnknown    PolicyMatch = 0
	PolicyMatchQName      PolicyMatch = 1
	PolicyMatchClientIP   PolicyMatch = 2
	PolicyMatchResponseIP PolicyMatch = 3
	PolicyMatchNSName     PolicyMatch = 4
	PolicyMatchNSIP       PolicyMatch = 5
)
