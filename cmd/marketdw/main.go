package main

import "marketdw/internal/cli"

func main() {
	cli.Execute()
}
