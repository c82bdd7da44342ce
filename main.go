package main

import "github.com/tinysh/tinysh/cmd"

func main() {
	cmd.Execute()
}
