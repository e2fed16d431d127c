package main

import "github.com/burrowdb/burrow/cli"

func main() {
	cli.Execute()
}
