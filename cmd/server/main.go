package main

import "opsdesk/internal/app/server"

func main() {
	server.Run()
}
