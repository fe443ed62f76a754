package blobstore

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// keyVersion prefixes every encoded EntryKey.
const keyVersion = 1

// EntryKey addresses single blob in a Backend.
type EntryKey struct {
	Scope Scope
	Name  string
}

// Bytes encodes k into the stable binary form shared by all backends: version
// and scope kind bytes followed by length-prefixed root id, branch path,
// branch name, fingerprint (branch and leaf scopes), leaf path and leaf name
// (leaf scope) and item name.
//
// Keys of one scope share the prefix.
func (k EntryKey) Bytes() []byte {
	s := k.Scope.Key
	b := make([]byte, 0, 2+len(s.RootID)+len(s.BranchPath)+len(s.BranchName)+len(s.Fingerprint)+
		len(s.LeafPath)+len(s.LeafName)+len(k.Name)+7)

	b = append(b, keyVersion, byte(k.Scope.Kind))
	b = protowire.AppendString(b, s.RootID)
	if k.Scope.Kind != KindRoot {
		b = protowire.AppendString(b, s.BranchPath)
		b = protowire.AppendString(b, s.BranchName)
		b = protowire.AppendString(b, s.Fingerprint)
		if k.Scope.Kind == KindLeaf {
			b = protowire.AppendString(b, s.LeafPath)
			b = protowire.AppendString(b, s.LeafName)
		}
	}
	return protowire.AppendString(b, k.Name)
}

// String returns hex-encoded k bytes.
func (k EntryKey) String() string {
	return fmt.Sprintf("%x", k.Bytes())
}

var errShortKey = errors.New("unexpected end of key")

// ParseEntryKey decodes EntryKey from its binary form. See EntryKey.Bytes.
func ParseEntryKey(b []byte) (EntryKey, error) {
	var k EntryKey

	if len(b) < 2 {
		return k, errShortKey
	}
	if b[0] != keyVersion {
		return k, fmt.Errorf("unsupported key version %d", b[0])
	}

	k.Scope.Kind = Kind(b[1])
	b = b[2:]

	var fields []*string
	switch k.Scope.Kind {
	case KindRoot:
		fields = []*string{&k.Scope.Key.RootID}
	case KindBranch:
		fields = []*string{&k.Scope.Key.RootID, &k.Scope.Key.BranchPath, &k.Scope.Key.BranchName, &k.Scope.Key.Fingerprint}
	case KindLeaf:
		fields = []*string{&k.Scope.Key.RootID, &k.Scope.Key.BranchPath, &k.Scope.Key.BranchName, &k.Scope.Key.Fingerprint,
			&k.Scope.Key.LeafPath, &k.Scope.Key.LeafName}
	default:
		return k, fmt.Errorf("unknown scope kind %d", b[1])
	}
	fields = append(fields, &k.Name)

	for i := range fields {
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return k, fmt.Errorf("field #%d: %w", i, protowire.ParseError(n))
		}
		*fields[i] = v
		b = b[n:]
	}

	if len(b) != 0 {
		return k, fmt.Errorf("%d trailing bytes", len(b))
	}

	return k, nil
}
