package main

import "github.com/KaramelBytes/dataviz-agent/cmd"

func main() {
	cmd.Execute()
}
