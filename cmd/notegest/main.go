package main

import "github.com/dgallion1/notegest/cmd/notegest/cmd"

func main() {
	cmd.Execute()
}
