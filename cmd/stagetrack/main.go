package main

import (
	"os"

	"github.com/zen-systems/stagetrack/pkg/cli"
	"github.com/zen-systems/stagetrack/pkg/node"
)

func main() {
	reg := node.NewRegistry()
	reg.MustRegister(randomNumber, sumNumbers)

	os.Exit(cli.Execute(reg))
}
