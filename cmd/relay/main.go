package main

import "github.com/weiawesome/hybrid-relay/internal/cli"

func main() {
	cli.Execute()
}
