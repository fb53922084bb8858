package main

import "couple-games-backend/cmd"

func main() {
	cmd.Run()
}
