package main

import (
	"github.com/turtacn/cakeys/cmd/cli"
)

// main is the entry point for the ca-keytool command-line tool.
// It delegates all execution to the Execute function provided by the cli package.
// main 是 ca-keytool 命令行工具的入口点。
func main() {
	cli.Execute()
}
