package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/winds-n/member-api/internal/server"
	"github.com/winds-n/member-api/internal/server/config"
)

func main() {

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
