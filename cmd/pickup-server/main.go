// Package main provides the pickup server: a mediator that holds messages
// for recipients and hands them out over the message pickup protocol.
package main

func main() {
	Execute()
}
