package main

import "github.com/jjenkins/billwatch/cmd"

func main() {
	cmd.Execute()
}
