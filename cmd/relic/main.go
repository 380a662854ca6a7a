package main

import (
	"github.com/agentpkg/relic/pkg/cmd"
)

func main() {
	cmd.Execute()
}
