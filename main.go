package main

import "github.com/stleox/beeline/pkg/cmd"

func main() {
	cmd.Execute()
}
