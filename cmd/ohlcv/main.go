package main

import "github.com/rustyeddy/ohlcv/internal/cli"

func main() {
	cli.Execute()
}
