package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/interrupt"
	"github.com/relabs-tech/motion_engine/internal/orientation"
	"github.com/relabs-tech/motion_engine/internal/transport"
)

// RunProducer brings the sensor up in motion-processor mode and publishes
// one sample message plus one fused pose message per interrupt.
func RunProducer() error {
	log.Println("starting motion-engine producer")

	cfg := config.Get()
	imuCfg, err := cfg.IMUConfig()
	if err != nil {
		return err
	}

	firmware, err := os.ReadFile(cfg.DMPFirmwarePath)
	if err != nil {
		log.Fatalf("failed to read DMP firmware: %v", err)
		return err
	}

	bus, err := transport.OpenI2C(cfg.I2CBus, imu.MPUAddress)
	if err != nil {
		log.Fatalf("failed to open I2C bus: %v", err)
		return err
	}
	defer bus.Close()

	edge, err := interrupt.OpenFallingEdge(cfg.InterruptPin)
	if err != nil {
		log.Fatalf("failed to open interrupt pin: %v", err)
		return err
	}
	defer edge.Close()

	driver, err := imu.New(bus, imuCfg)
	if err != nil {
		return err
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := driver.InitDMP(firmware, edge); err != nil {
		log.Fatalf("failed to initialize motion processor: %v", err)
		return err
	}
	log.Printf("motion processor running at %d Hz, orientation %s", imuCfg.SampleRate, imuCfg.Orientation)

	driver.SetHandler(func(s *imu.Sample) {
		if payload, err := json.Marshal(s); err != nil {
			log.Printf("json marshal error (sample): %v", err)
		} else if token := client.Publish(cfg.TopicSample, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (sample): %v", token.Error())
		}

		pose := orientation.PoseFromTaitBryan(s.FusedTaitBryan)
		if payload, err := json.Marshal(pose); err != nil {
			log.Printf("json marshal error (pose): %v", err)
		} else if token := client.Publish(cfg.TopicPoseFused, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("MQTT publish error (pose/fused): %v", token.Error())
		}
	})

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("producer: shutting down")
	driver.SetHandler(nil)
	return driver.PowerOff()
}
