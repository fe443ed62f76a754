package storage

// RootInfo describes workspace root storage is requested for.
type RootInfo struct {
	// ID is a root identity registered as primary.
	ID string
	// Path is a root path.
	Path string
	// WorkingDir is a working directory of the root.
	WorkingDir string
	// ApproxSize is an approximate size of the root contents in bytes.
	ApproxSize int64
}

// key returns registry key of the root: storage is shared by roots with the
// same path and working directory.
func (r RootInfo) key() string {
	return r.Path + "\x00" + r.WorkingDir
}
