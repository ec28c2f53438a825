package main

import "warelay/cmd"

func main() {
	cmd.Execute()
}
