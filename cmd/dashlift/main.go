package main

import "github.com/dashlift/dashlift/cmd/dashlift/commands"

func main() {
	commands.Execute()
}
