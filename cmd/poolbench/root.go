package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/poolkit/upstream"
)

var (
	// Global flags
	chunkSize    uint64
	nextSize     uint64
	maxSize      uint64
	upstreamName string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "poolbench",
	Short: "Exercise poolkit memory pools with synthetic workloads",
	Long: `poolbench runs allocation workloads against poolkit's fixed-chunk
memory pools and prints the engine counters afterwards. Use it to size chunk
counts and growth schedules, or to compare upstream allocators.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().Uint64Var(&chunkSize, "chunk-size", 64, "Chunk size in bytes")
	rootCmd.PersistentFlags().Uint64Var(&nextSize, "next-size", 32, "Chunks in the first super-block")
	rootCmd.PersistentFlags().Uint64Var(&maxSize, "max-size", 0, "Growth cap in chunks (0 = uncapped)")
	rootCmd.PersistentFlags().
		StringVar(&upstreamName, "upstream", "heap", "Upstream allocator: heap, mmap or aligned")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// selectedUpstream maps the --upstream flag to an implementation.
func selectedUpstream() (upstream.Interface, error) {
	switch upstreamName {
	case "heap":
		return upstream.NewHeap(), nil
	case "mmap":
		return upstream.NewMmap(), nil
	case "aligned":
		return upstream.NewAligned(64), nil
	default:
		return nil, fmt.Errorf("unknown upstream %q", upstreamName)
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
