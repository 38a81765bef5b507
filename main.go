package main

import "github.com/Digital-Shane/reelrunner/internal/cmd"

func main() {
	cmd.Execute()
}
