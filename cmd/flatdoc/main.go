package main

import "github.com/MeKo-Tech/flatdoc/cmd/flatdoc/cmd"

func main() {
	cmd.Execute()
}
