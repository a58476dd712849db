package main

import "github.com/ogulcanaydogan/norway-alerts/internal/cli"

func main() {
	cli.Execute()
}
