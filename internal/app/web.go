package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/orientation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same host; any origin is fine on a
	// closed vehicle network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func RunWeb() error {
	cfg := config.Get()

	var (
		mu       sync.RWMutex
		lastPose orientation.Pose
		havePose bool
	)

	// websocket fan-out
	var (
		subMu sync.Mutex
		subs  = make(map[chan orientation.Pose]struct{})
	)

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to fused pose topic and update lastPose on each message
	token := client.Subscribe(cfg.TopicPoseFused, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p orientation.Pose
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastPose = p
		havePose = true
		mu.Unlock()

		subMu.Lock()
		for ch := range subs {
			select {
			case ch <- p:
			default:
				// slow client, drop this update
			}
		}
		subMu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicPoseFused)

	// 3) JSON API endpoint: latest pose
	http.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !havePose {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastPose); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) Websocket endpoint: pose stream
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}

		ch := make(chan orientation.Pose, 8)
		subMu.Lock()
		subs[ch] = struct{}{}
		subMu.Unlock()

		defer func() {
			subMu.Lock()
			delete(subs, ch)
			subMu.Unlock()
			conn.Close()
		}()

		for p := range ch {
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
