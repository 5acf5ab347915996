package main

import (
	"log"

	"github.com/joho/godotenv"

	"perfreview/internal/app/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	server.Run()
}
