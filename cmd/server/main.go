package main

import (
	"context"
	"log"

	server "github.com/dmitrijs2005/contactbook/internal/server"
	"github.com/dmitrijs2005/contactbook/internal/server/config"
)

func main() {
	ctx := context.Background()

	cfg := config.LoadConfig()

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Printf("error initializing app: %v", err)
		return
	}

	app.Run(ctx)
}
