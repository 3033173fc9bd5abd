package main

import "github.com/brogergvhs/piccomad/cmd"

func main() {
	cmd.Execute()
}
