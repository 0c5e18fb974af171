package pool

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats holds internal pool counters, for instrumentation and tests.
type Stats struct {
	AllocCalls   uint64 // allocation requests, single and contiguous
	FreeCalls    uint64 // deallocation requests
	GrowCalls    uint64 // growth events that installed a super-block
	GrowBytes    uint64 // total bytes acquired from the upstream
	Backtracks   uint64 // growth events that succeeded only after halving
	BlocksFreed  uint64 // super-blocks returned by ReleaseMemory
	BlocksPurged uint64 // super-blocks returned by PurgeMemory
}

var statsPrinter = message.NewPrinter(language.English)

// String renders the counters with thousands separators for log and CLI
// output.
func (s Stats) String() string {
	return statsPrinter.Sprintf(
		"allocs=%d frees=%d grows=%d grow_bytes=%d backtracks=%d released=%d purged=%d",
		s.AllocCalls, s.FreeCalls, s.GrowCalls, s.GrowBytes,
		s.Backtracks, s.BlocksFreed, s.BlocksPurged)
}
