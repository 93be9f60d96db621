// Package main is the entry point for the rallymetrics CLI, which turns
// table-tennis ball-tracking model output into rallies, scores, statistics
// and highlights.
package main

import "github.com/allanai/rallymetrics/cmd"

func main() {
	cmd.Execute()
}
