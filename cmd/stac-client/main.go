package main

import "github.com/helix-tools/stac-sdk-go/cli"

func main() {
	cli.Execute()
}
