// Package malscan provides the command-line interface for the malscan tool.
// It configures subcommands (scan, baseline, catalog, history, etc.), parses
// flags, and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/malscan/malscan/cmd/malscan"
//	func main() { malscan.Execute() }
package malscan
