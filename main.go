package main

import "github.com/kozaktomas/sigboard/cmd"

func main() {
	cmd.Execute()
}
