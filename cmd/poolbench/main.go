// poolbench drives poolkit pools with synthetic workloads and reports the
// engine's counters. It exists to compare configurations (chunk size, growth
// schedule, upstream) before committing one in an application.
package main

func main() {
	execute()
}
