package main

import "github.com/relloyd/trackpipe/cmd"

func main() {
	cmd.Execute()
}
