package main

import "github.com/ayusman/handcursor/cmd/handcursor/commands"

func main() {
	commands.Execute()
}
