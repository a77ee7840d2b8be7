// Package main provides the entry point for the authcrawl CLI.
package main

func main() {
	Execute()
}
