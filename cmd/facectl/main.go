// ABOUTME: Entry point for facectl, the command-line client for face-gateway
// ABOUTME: Lists, creates, and destroys faces and drives interactions over gRPC

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
