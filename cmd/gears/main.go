package main

import (
	"log"

	"github.com/tgrall/gears-explorer/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ gears-explorer failed to start: %v", err)
	}
}
