package main

import (
	"log"

	"github.com/joho/godotenv"

	"leavehub/internal/app/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
	server.Run()
}
