package protobuf

import "fmt"

// Message is a message encoded in Protocol Buffers V3 wire format by hand.
type Message interface {
	MarshalProtobuf() []byte
	UnmarshalProtobuf([]byte) error
}

// Codec is a gRPC codec for Message instances. It does not use reflection or
// generated code.
type Codec struct{}

// Marshal encodes msg which MUST implement Message.
func (Codec) Marshal(msg any) ([]byte, error) {
	m, ok := msg.(Message)
	if !ok {
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
	return m.MarshalProtobuf(), nil
}

// Unmarshal decodes data into msg which MUST implement Message.
func (Codec) Unmarshal(data []byte, msg any) error {
	m, ok := msg.(Message)
	if !ok {
		return fmt.Errorf("unsupported message type %T", msg)
	}
	return m.UnmarshalProtobuf(data)
}

// Name returns codec name used as gRPC content subtype.
func (Codec) Name() string {
	return "persistcache"
}
