package main

import "agentmesh/internal/cli"

func main() {
	cli.Execute()
}
