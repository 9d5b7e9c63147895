// Package main provides the entry point for the redirscan CLI.
//
// redirscan follows the HTTP redirect chain of a URL hop by hop, enriches the
// final destination and scores the chain against phishing and tracking
// heuristics.
//
// Usage:
//
//	redirscan trace <url>
//	redirscan trace --list <file>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
