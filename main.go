package main

import "github.com/KaramelBytes/reservo/cmd"

func main() {
	cmd.Execute()
}
