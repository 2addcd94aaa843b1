package main

import "github.com/iksnae/assistant-session/cmd"

func main() {
	cmd.Execute()
}
