/*
Package workspace implements the immutable three-level model hashed by the
checksum tree: a Root owns Branches, a Branch owns Leaves.

All nodes are persistent values. Edits never change an existing node: they
return a new node, and only the nodes on the path from the edited Leaf up to
the Root are allocated again. Unaffected subtrees are shared by pointer, so
the checksums memoized on them remain valid for the new version.
*/
package workspace
