package search

import "github.com/poiesic/refmatch/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track routing and per-matcher results.
type SearchMonitor interface {
	Start(req Request, route Route)
	AfterAbbreviation(matches []core.Match)
	AfterFuzzy(matches []core.Match)
	Finish(matches []core.Match)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Request, _ Route)         {}
func (n *noopMonitor) AfterAbbreviation(_ []core.Match) {}
func (n *noopMonitor) AfterFuzzy(_ []core.Match)        {}
func (n *noopMonitor) Finish(_ []core.Match)            {}
