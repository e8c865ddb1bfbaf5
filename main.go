package main

import "github.com/framegraph/framegraph/cmd"

func main() {
	cmd.Execute()
}
