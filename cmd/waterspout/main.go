// Package main is the entry point for the waterspout demo server.
package main

func main() {
	Execute()
}
