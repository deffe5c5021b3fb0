// Package main provides the pipegate CLI for running pipelines and
// evaluating quality gates.
package main

func main() {
	Execute()
}
