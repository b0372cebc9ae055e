package main

import "github.com/iliyamo/library-lending/cmd/libctl/commands"

func main() {
	commands.Execute()
}
