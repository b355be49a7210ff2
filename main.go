package main

import "reverbfm/cmd"

func main() {
	cmd.Execute()
}
