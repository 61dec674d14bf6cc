package main

import "github.com/runZeroInc/rsapem/cmd"

func main() {
	cmd.Execute()
}
