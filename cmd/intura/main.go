package main

import "github.com/intura-ai/intura-go/internal/cli"

func main() {
	cli.Execute()
}
