// Package main provides a WebSocket smoke and stress testing client for the
// Murmur messaging server. It logs in over REST, opens the live channel, and
// either replays a YAML scenario or floods messages at a fixed rate.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

// Scenario is a scripted conversation replayed against the server.
type Scenario struct {
	PeerID uint   `yaml:"peer_id"`
	Steps  []Step `yaml:"steps"`
}

// Step is one scenario action: "send", "mark_read" (marks the last received
// message), or "wait".
type Step struct {
	Action  string `yaml:"action"`
	Content string `yaml:"content,omitempty"`
	WaitMS  int    `yaml:"wait_ms,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8460", "API server host")
	email := flag.String("email", "alice@example.com", "Test user email")
	password := flag.String("password", "password123", "Test user password")
	peer := flag.Uint("peer", 2, "Receiver user ID for stress mode")
	scenarioPath := flag.String("scenario", "", "YAML scenario file to replay instead of stress mode")
	clients := flag.Int("clients", 10, "Number of concurrent clients (stress mode)")
	duration := flag.Duration("duration", 30*time.Second, "Test duration (stress mode)")
	flag.Parse()

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}
	log.Printf("✅ Logged in successfully")

	if *scenarioPath != "" {
		if err := runScenario(*host, token, *scenarioPath); err != nil {
			log.Fatalf("❌ Scenario failed: %v", err)
		}
		printMetrics()
		return
	}

	log.Printf("🚀 Starting stress test: %d clients for %v against %s", *clients, *duration, *host)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runStressClient(*host, token, uint(*peer), i, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func login(host, email, password string) (string, error) {
	loginURL := fmt.Sprintf("http://%s/api/auth/login", host)
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func dial(host, token string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws/", RawQuery: "token=" + token}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	return c, err
}

func runScenario(host, token, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(raw, &scenario); err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}
	if scenario.PeerID == 0 {
		return fmt.Errorf("scenario is missing peer_id")
	}

	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)
	c, err := dial(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return err
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	var lastReceived atomic.Int64
	go func() {
		for {
			_, frame, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.MessagesReceived, 1)

			var event struct {
				Type    string `json:"type"`
				Payload struct {
					ID uint `json:"id"`
				} `json:"payload"`
			}
			if json.Unmarshal(frame, &event) == nil {
				log.Printf("⬅️  %s", event.Type)
				if event.Type == "receive_message" {
					lastReceived.Store(int64(event.Payload.ID))
				}
			}
		}
	}()

	for i, step := range scenario.Steps {
		switch step.Action {
		case "send":
			frame, _ := json.Marshal(map[string]interface{}{
				"type":        "send_message",
				"receiver_id": scenario.PeerID,
				"content":     step.Content,
			})
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		case "mark_read":
			msgID := lastReceived.Load()
			if msgID == 0 {
				log.Printf("step %d: nothing received yet, skipping mark_read", i)
				continue
			}
			frame, _ := json.Marshal(map[string]interface{}{
				"type":       "mark_read",
				"message_id": msgID,
			})
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case "wait":
			// handled below
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
		if step.WaitMS > 0 {
			time.Sleep(time.Duration(step.WaitMS) * time.Millisecond)
		}
	}

	// Drain remaining events briefly before closing.
	time.Sleep(time.Second)
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func runStressClient(host, token string, peerID uint, id int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	c, err := dial(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.MessagesReceived, 1)
		}
	}()

	ticker := time.NewTicker(time.Second * 5)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			frame, _ := json.Marshal(map[string]interface{}{
				"type":        "send_message",
				"receiver_id": peerID,
				"content":     fmt.Sprintf("Stress test message from client %d", id),
			})
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
