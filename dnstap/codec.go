package dnstap

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the dnstap.Dnstap, dnstap.Message and dnstap.Policy
// messages, per the schema's wire layout.
const (
	fieldDnstapType     = 15
	fieldDnstapIdentity = 1
	fieldDnstapVersion  = 2
	fieldDnstapExtra    = 3
	fieldDnstapMessage  = 14

	fieldMessageType            = 1
	fieldMessageSocketFamily    = 2
	fieldMessageSocketProtocol  = 3
	fieldMessageQueryAddress    = 4
	fieldMessageResponseAddress = 5
	fieldMessageQueryPort       = 6
	fieldMessageResponsePort    = 7
	fieldMessageQueryTimeSec    = 8
	fieldMessageQueryTimeNsec   = 9
	fieldMessageQueryMessage    = 10
	fieldMessageQueryZone       = 11
	fieldMessageRespTimeSec     = 12
	fieldMessageRespTimeNsec    = 13
	fieldMessageResponseMessage = 14
	fieldMessagePolicy          = 15

	fieldPolicyType   = 1
	fieldPolicyRule   = 2
	fieldPolicyAction = 3
	fieldPolicyMatch  = 4
	fieldPolicyValue  = 5
)

// EncodedSize returns the number of bytes Encode would append for r.
func EncodedSize(r *Record) int {
	return len(Encode(nil, r))
}

// Encode appends the protobuf wire encoding of r to dst and returns the
// extended buffer, matching the append-style convention of
// google.golang.org/protobuf/encoding/protowire.
func Encode(dst []byte, r *Record) []byte {
	if len(r.Identity) > 0 {
		dst = protowire.AppendTag(dst, fieldDnstapIdentity, protowire.BytesType)
		dst = protowire.AppendBytes(dst, r.Identity)
	}
	if len(r.Version) > 0 {
		dst = protowire.AppendTag(dst, fieldDnstapVersion, protowire.BytesType)
		dst = protowire.AppendBytes(dst, r.Version)
	}
	if len(r.Extra) > 0 {
		dst = protowire.AppendTag(dst, fieldDnstapExtra, protowire.BytesType)
		dst = protowire.AppendBytes(dst, r.Extra)
	}
	dst = protowire.AppendTag(dst, fieldDnstapType, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(r.Type))

	if r.Message != nil {
		dst = protowire.AppendTag(dst, fieldDnstapMessage, protowire.BytesType)
		dst = protowire.AppendBytes(dst, encodeMessage(nil, r.Message))
	}
	return dst
}

func encodeMessage(dst []byte, m *Message) []byte {
	dst = protowire.AppendTag(dst, fieldMessageType, protowire.VarintType)
	dst = protowire.AppendVarint(dst, uint64(m.Type))

	if m.HasSocketFamily {
		dst = protowire.AppendTag(dst, fieldMessageSocketFamily, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.SocketFamily))
	}
	if m.HasSocketProtocol {
		dst = protowire.AppendTag(dst, fieldMessageSocketProtocol, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.SocketProtocol))
	}
	if len(m.QueryAddress) > 0 {
		dst = protowire.AppendTag(dst, fieldMessageQueryAddress, protowire.BytesType)
		dst = protowire.AppendBytes(dst, m.QueryAddress)
	}
	if len(m.ResponseAddress) > 0 {
		dst = protowire.AppendTag(dst, fieldMessageResponseAddress, protowire.BytesType)
		dst = protowire.AppendBytes(dst, m.ResponseAddress)
	}
	if m.HasQueryPort {
		dst = protowire.AppendTag(dst, fieldMessageQueryPort, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.QueryPort))
	}
	if m.HasResponsePort {
		dst = protowire.AppendTag(dst, fieldMessageResponsePort, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.ResponsePort))
	}
	if m.HasQueryTime {
		dst = protowire.AppendTag(dst, fieldMessageQueryTimeSec, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.QueryTime.Unix()))
		dst = protowire.AppendTag(dst, fieldMessageQueryTimeNsec, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.QueryTime.Nanosecond()))
	}
	if len(m.QueryMessage) > 0 {
		dst = protowire.AppendTag(dst, fieldMessageQueryMessage, protowire.BytesType)
		dst = protowire.AppendBytes(dst, m.QueryMessage)
	}
	if len(m.QueryZone) > 0 {
		dst = protowire.AppendTag(dst, fieldMessageQueryZone, protowire.BytesType)
		dst = protowire.AppendBytes(dst, m.QueryZone)
	}
	if m.HasResponseTime {
		dst = protowire.AppendTag(dst, fieldMessageRespTimeSec, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.ResponseTime.Unix()))
		dst = protowire.AppendTag(dst, fieldMessageRespTimeNsec, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(m.ResponseTime.Nanosecond()))
	}
	if len(m.ResponseMessage) > 0 {
		dst = protowire.AppendTag(dst, fieldMessageResponseMessage, protowire.BytesType)
		dst = protowire.AppendBytes(dst, m.ResponseMessage)
	}
	if m.Policy != nil {
		dst = protowire.AppendTag(dst, fieldMessagePolicy, protowire.BytesType)
		dst = protowire.AppendBytes(dst, encodePolicy(nil, m.Policy))
	}
	return dst
}

func encodePolicy(dst []byte, p *Policy) []byte {
	if p.Type != "" {
		dst = protowire.AppendTag(dst, fieldPolicyType, protowire.BytesType)
		dst = protowire.AppendString(dst, p.Type)
	}
	if len(p.Rule) > 0 {
		dst = protowire.AppendTag(dst, fieldPolicyRule, protowire.BytesType)
		dst = protowire.AppendBytes(dst, p.Rule)
	}
	if p.HasAction {
		dst = protowire.AppendTag(dst, fieldPolicyAction, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(p.Action))
	}
	if p.HasMatch {
		dst = protowire.AppendTag(dst, fieldPolicyMatch, protowire.VarintType)
		dst = protowire.AppendVarint(dst, uint64(p.Match))
	}
	if len(p.Value) > 0 {
		dst = protowire.AppendTag(dst, fieldPolicyValue, protowire.BytesType)
		dst = protowire.AppendBytes(dst, p.Value)
	}
	return dst
}

// Decode parses the protobuf wire encoding of a dnstap.Dnstap record.
// Unknown fields are skipped, matching protobuf's forward-compatibility
// rule; a truncated or malformed field is reported as an error.
func Decode(data []byte) (*Record, error) {
	r := &Record{}
	var msg *Message

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("dnstap: malformed tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldDnstapIdentity:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.Identity = v
			data = data[n:]
		case fieldDnstapVersion:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.Version = v
			data = data[n:]
		case fieldDnstapExtra:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			r.Extra = v
			data = data[n:]
		case fieldDnstapType:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			r.Type = Type(v)
			data = data[n:]
		case fieldDnstapMessage:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			var err2 error
			msg, err2 = decodeMessage(v)
			if err2 != nil {
				return nil, err2
			}
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
		}
	}

	r.Message = msg
	return r, nil
}

func decodeMessage(data []byte) (*Message, error) {
	m := &Message{}
	var querySec, queryNsec, respSec, respNsec int64
	var haveQuerySec, haveQueryNsec, haveRespSec, haveRespNsec bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("dnstap: malformed message tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldMessageType:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			m.Type = MessageType(v)
			data = data[n:]
		case fieldMessageSocketFamily:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			m.SocketFamily = SocketFamily(v)
			m.HasSocketFamily = true
			data = data[n:]
		case fieldMessageSocketProtocol:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			m.SocketProtocol = SocketProtocol(v)
			m.HasSocketProtocol = true
			data = data[n:]
		case fieldMessageQueryAddress:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.QueryAddress = v
			data = data[n:]
		case fieldMessageResponseAddress:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.ResponseAddress = v
			data = data[n:]
		case fieldMessageQueryPort:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			m.QueryPort = uint32(v)
			m.HasQueryPort = true
			data = data[n:]
		case fieldMessageResponsePort:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			m.ResponsePort = uint32(v)
			m.HasResponsePort = true
			data = data[n:]
		case fieldMessageQueryTimeSec:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			querySec, haveQuerySec = int64(v), true
			data = data[n:]
		case fieldMessageQueryTimeNsec:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			queryNsec, haveQueryNsec = int64(v), true
			data = data[n:]
		case fieldMessageQueryMessage:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.QueryMessage = v
			data = data[n:]
		case fieldMessageQueryZone:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.QueryZone = v
			data = data[n:]
		case fieldMessageRespTimeSec:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			respSec, haveRespSec = int64(v), true
			data = data[n:]
		case fieldMessageRespTimeNsec:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			respNsec, haveRespNsec = int64(v), true
			data = data[n:]
		case fieldMessageResponseMessage:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			m.ResponseMessage = v
			data = data[n:]
		case fieldMessagePolicy:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			p, err2 := decodePolicy(v)
			if err2 != nil {
				return nil, err2
			}
			m.Policy = p
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
		}
	}

	if haveQuerySec || haveQueryNsec {
		m.QueryTime = time.Unix(querySec, queryNsec).UTC()
		m.HasQueryTime = true
	}
	if haveRespSec || haveRespNsec {
		m.ResponseTime = time.Unix(respSec, respNsec).UTC()
		m.HasResponseTime = true
	}
	return m, nil
}

func decodePolicy(data []byte) (*Policy, error) {
	p := &Policy{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("dnstap: malformed policy tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldPolicyType:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			p.Type = string(v)
			data = data[n:]
		case fieldPolicyRule:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			p.Rule = v
			data = data[n:]
		case fieldPolicyAction:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			p.Action = PolicyAction(v)
			p.HasAction = true
			data = data[n:]
		case fieldPolicyMatch:
			v, n, err := consumeVarint(data, typ)
			if err != nil {
				return nil, err
			}
			p.Match = PolicyMatch(v)
			p.HasMatch = true
			data = data[n:]
		case fieldPolicyValue:
			v, n, err := consumeBytes(data, typ)
			if err != nil {
				return nil, err
			}
			p.Value = v
			data = data[n:]
		default:
			n, err := skipField(data, typ)
			if err != nil {
				return nil, err
			}
			data = data[n:]
		}
	}
	return p, nil
}

func consumeVarint(data []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("dnstap: expected varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, fmt.Errorf("dnstap: malformed varint: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(data []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("dnstap: expected length-delimited field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, fmt.Errorf("dnstap: malformed length-delimited field: %w", protowire.ParseError(n))
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n, nil
}

func skipField(data []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, data)
	if n < 0 {
		return 0, fmt.Errorf("dnstap: malformed unknown field: %w", protowire.ParseError(n))
	}
	return n, nil
}
