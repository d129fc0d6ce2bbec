package main

import (
	"github.com/ppiankov/callgen/internal/cli"
	"github.com/ppiankov/callgen/internal/util"
)

func main() {
	if err := cli.Execute(); err != nil {
		util.ExitWithError(util.ExitCodeFor(err), "Error: %v", err)
	}
}
