package main

import "github.com/get-me-through/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
