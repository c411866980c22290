package main

import "github.com/Tatha911/OpenIFEM/cmd"

func main() {
	cmd.Execute()
}
