// Command cmdrelay runs stored commands on remote machines over SSH.
package main

import (
	"github.com/mesh-intelligence/cmdrelay/internal/cli"
)

func main() {
	cli.Execute()
}
