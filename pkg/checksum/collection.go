package checksum

import "slices"

// Collection is an ordered immutable sequence of child checksums together
// with an aggregate checksum over them. Order is significant: the same
// children in a different order produce a different aggregate.
type Collection struct {
	children  []Checksum
	aggregate Checksum
}

// NewCollection hashes children in the given order with h. The children
// slice is copied.
func NewCollection(h Hasher, children []Checksum) Collection {
	cs := slices.Clone(children)

	buf := make([]byte, 0, len(cs)*Size)
	for i := range cs {
		buf = cs[i].AppendTo(buf)
	}

	return Collection{
		children:  cs,
		aggregate: h.Sum(buf),
	}
}

// Checksum returns aggregate checksum of the collection.
func (c Collection) Checksum() Checksum {
	return c.aggregate
}

// Len returns number of children.
func (c Collection) Len() int {
	return len(c.children)
}

// At returns i-th child checksum. Panics if i is out of range.
func (c Collection) At(i int) Checksum {
	return c.children[i]
}

// Children returns a copy of child checksums.
func (c Collection) Children() []Checksum {
	return slices.Clone(c.children)
}
