package search

import "github.com/10JERRY01/GreehouseGasEmissionRAG/core"

// QueryMonitor provides hooks to observe the answering process.
// Implement this interface to track intermediate steps and results.
type QueryMonitor interface {
	Start(question string)
	OnRetrieve(results []*core.SearchResult, fallback bool)
	OnContext(included, dropped, chars int)
	OnGenerate(text string, err error)
	Finish(answer *core.Answer)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (noopMonitor) Start(string)                          {}
func (noopMonitor) OnRetrieve([]*core.SearchResult, bool) {}
func (noopMonitor) OnContext(int, int, int)               {}
func (noopMonitor) OnGenerate(string, error)              {}
func (noopMonitor) Finish(*core.Answer)                   {}
