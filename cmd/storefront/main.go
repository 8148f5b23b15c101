package main

import "shopdesk.io/app/internal/cmd"

func main() {
	cmd.Execute()
}
