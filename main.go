package main

import "github.com/theirongolddev/reelstats/cmd"

func main() {
	cmd.Execute()
}
