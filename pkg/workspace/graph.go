package workspace

import (
	"errors"
	"slices"
)

// ErrUnknownBranch is returned when Branch is not found in Root.
var ErrUnknownBranch = errors.New("unknown branch")

// StaticGraph is a map-based dependency graph: Branch ID to IDs of Branches
// it directly references.
type StaticGraph map[string][]string

// Dependencies returns direct dependencies of the Branch.
func (g StaticGraph) Dependencies(branchID string) ([]string, error) {
	return slices.Clone(g[branchID]), nil
}
