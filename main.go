package main

import (
	"os"

	"github.com/consensus-shipyard/go-ipc-relay/command"
)

func main() {
	if err := command.GetRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
