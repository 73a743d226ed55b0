package app

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/heading"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/orientation"
)

func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Samples come in at the full DMP rate; print at the configured interval
	// to keep the terminal readable.
	logEvery := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	var lastSamplePrint time.Time

	// Subscribe to raw samples
	sampleToken := client.Subscribe(cfg.TopicSample, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: sample unmarshal error: %v", err)
			return
		}

		now := time.Now()
		if now.Sub(lastSamplePrint) < logEvery {
			return
		}
		lastSamplePrint = now

		fmt.Printf(
			"[IMU ]  ax=%7.3f ay=%7.3f az=%7.3f  gx=%8.3f gy=%8.3f gz=%8.3f  mx=%7.2f my=%7.2f mz=%7.2f  t=%5.1f°C\n",
			s.Accel[0], s.Accel[1], s.Accel[2],
			s.Gyro[0], s.Gyro[1], s.Gyro[2],
			s.Mag[0], s.Mag[1], s.Mag[2],
			s.TempC,
		)
		fmt.Printf(
			"[HEAD]  compass=%7.2f° (raw %7.2f°)\n",
			s.CompassHeading*180.0/math.Pi,
			s.CompassHeadingRaw*180.0/math.Pi,
		)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicSample)

	// Subscribe to fused orientation
	fusedToken := client.Subscribe(cfg.TopicPoseFused, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: fused pose unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[FUSE]  ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n",
			p.Roll, p.Pitch, p.Yaw,
		)
	})
	fusedToken.Wait()
	if fusedToken.Error() != nil {
		return fusedToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicPoseFused)

	// Subscribe to GPS heading
	headingToken := client.Subscribe(cfg.TopicHeading, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f heading.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: heading unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
			f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
		)
	})
	headingToken.Wait()
	if headingToken.Error() != nil {
		return headingToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicHeading)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
