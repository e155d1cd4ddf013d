package main

import (
	"github.com/nodevenv/nodevenv/pkg/cmd"
)

func main() {
	cmd.Execute()
}
