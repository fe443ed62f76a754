/*
Package checksum provides fixed-size content hashes used to address cached
artifacts.

A Checksum is a 160-bit value produced by a Hasher. Checksums of composite
objects are built from ordered collections of child checksums (see
Collection), and memoized on immutable objects via Memo.
*/
package checksum
