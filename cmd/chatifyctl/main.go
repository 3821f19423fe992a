package main

import "chatify-realtime/cmd/chatifyctl/cmd"

func main() {
	cmd.Execute()
}
