package main

import (
	"billsync/internal/cli"
)

func main() {
	cli.Execute()
}
