package main

import "github.com/riadafridishibly/compactor/cmd"

func main() {
	cmd.Execute()
}
