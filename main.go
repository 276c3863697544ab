package main

import (
	"log"
	"net/http"

	"eventix/cmd"
)

func main() {
	if err := cmd.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
