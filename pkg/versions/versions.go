// Package versions resolves local and target versions of a package and plans
// the patch chain between them.
package versions

import (
	"fmt"
	"strconv"
)

// Version is one build of a package. Versions are ordered by number only.
type Version struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
}

// Step patches one version into another.
type Step struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s Step) String() string {
	return strconv.Itoa(s.From) + "-" + strconv.Itoa(s.To)
}

// BuildChain returns the steps leading from local to target. A missing local
// version installs the target in one step from 0; otherwise unit steps are
// walked in either direction.
func BuildChain(local *Version, target Version) []Step {
	if local == nil {
		return []Step{{From: 0, To: target.Version}}
	}
	l, t := local.Version, target.Version
	if l == t {
		return []Step{}
	}
	dir := 1
	if t < l {
		dir = -1
	}
	chain := make([]Step, 0, abs(t-l))
	for v := l; v != t; v += dir {
		chain = append(chain, Step{From: v, To: v + dir})
	}
	return chain
}

// UpToDate reports whether local already is target, by version number.
func UpToDate(local *Version, target Version) bool {
	return local != nil && local.Version == target.Version
}

// Describe renders a chain as "a-b, b-c" for logs.
func Describe(chain []Step) string {
	if len(chain) == 0 {
		return "(none)"
	}
	s := ""
	for i, step := range chain {
		if i > 0 {
			s += ", "
		}
		s += step.String()
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (v Version) String() string {
	return fmt.Sprintf("%d (%s)", v.Version, v.Name)
}
