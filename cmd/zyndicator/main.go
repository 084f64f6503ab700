package main

import "github.com/matthew-graves/the-zyndicator/cmd/zyndicator/cmd"

func main() {
	cmd.Execute()
}
