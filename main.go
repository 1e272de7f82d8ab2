package main

import "github.com/snapctx/snapctx/cmd"

func main() {
	cmd.Execute()
}
