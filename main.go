package main

import "github.com/llehouerou/scrobsync/internal/cli"

func main() {
	cli.Execute()
}
