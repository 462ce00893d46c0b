// Copyright © 2018 One Concern

package main

import "github.com/oneconcern/slides/cmd/slides/cmd"

func main() {
	cmd.Execute()
}
