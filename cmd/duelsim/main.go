// Command duelsim plays a complete duel between two bots on the in-process
// invitation, coordination and session stack, without a Nakama server.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
