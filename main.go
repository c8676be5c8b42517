package main

import "messenger-backend/cmd"

func main() {
	cmd.Run()
}
