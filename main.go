package main

import "review-harvester/cmd"

func main() {
	cmd.Execute()
}
