package main

import "lunchly-backend/cmd"

func main() {
	cmd.Run()
}
