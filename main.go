package main

import "github.com/giovaniif/court-booking/cmd/api"

func main() {
	api.StartServer()
}
