package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// NewUnorderedFieldsError returns common error for field order violation when
// field #n2 goes after #n1.
func NewUnorderedFieldsError(n1, n2 protowire.Number) error {
	return fmt.Errorf("unordered fields: #%d after #%d", n2, n1)
}

// NewRepeatedFieldError returns common error for field #n repeated more than
// once.
func NewRepeatedFieldError(n protowire.Number) error {
	return fmt.Errorf("repeated field #%d", n)
}

func newTruncatedBufferError(need, left int) error {
	return fmt.Errorf("unexpected EOF: need %d bytes, left %d in buffer", need, left)
}

func newUnknownFieldTypeError(typ protowire.Type) error {
	return fmt.Errorf("unknown field type %v", typ)
}

func wrapParseFieldError(num protowire.Number, typ protowire.Type, cause error) error {
	return fmt.Errorf("parse field (#%d,%v): %w", num, typ, cause)
}
