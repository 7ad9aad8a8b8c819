package main

import "humanfinder/cmd"

func main() {
	cmd.Execute()
}
