package main

import "github.com/refscout/refscout/cmd"

func main() {
	cmd.Execute()
}
