package main

import (
	"log"

	"github.com/relabs-tech/motion_engine/internal/app"
	"github.com/relabs-tech/motion_engine/internal/config"
)

func main() {
	log.Println("starting motion-engine heading producer (NMEA → MQTT)")

	// Load configuration
	if err := config.InitGlobal("motion_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunHeadingProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
