package main

import "github.com/voltgrid/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
