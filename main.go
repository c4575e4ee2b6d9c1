package main

import "github.com/KaramelBytes/chainpulse/cmd"

func main() {
	cmd.Execute()
}
