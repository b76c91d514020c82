package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// loadgen posts synthetic sensor readings with a daily sinusoidal pattern
// and occasional injected spikes and flatlines, so every detector in the
// engine has something to find.

var (
	sentCount int64
	failCount int64
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/loadgen.go <base-url> [entities] [interval] [duration]")
		fmt.Println("Example: go run tools/loadgen.go http://localhost:8080 10 1s 5m")
		os.Exit(1)
	}

	baseURL := os.Args[1]
	entities := 10
	interval := time.Second
	duration := 5 * time.Minute

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &entities)
	}
	if len(os.Args) > 3 {
		if d, err := time.ParseDuration(os.Args[3]); err == nil {
			interval = d
		}
	}
	if len(os.Args) > 4 {
		if d, err := time.ParseDuration(os.Args[4]); err == nil {
			duration = d
		}
	}

	fmt.Printf("Load Generator Configuration:\n")
	fmt.Printf("  URL:      %s\n", baseURL)
	fmt.Printf("  Entities: %d\n", entities)
	fmt.Printf("  Interval: %v\n", interval)
	fmt.Printf("  Duration: %v\n\n", duration)

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	start := time.Now()
	end := start.Add(duration)

	var wg sync.WaitGroup
	for i := 0; i < entities; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			emit(client, baseURL, fmt.Sprintf("sensor.temp_%d", n), interval, end)
		}(i)
	}
	wg.Wait()

	total := atomic.LoadInt64(&sentCount)
	failed := atomic.LoadInt64(&failCount)
	fmt.Println("\n==========================================")
	fmt.Println("Load Generator Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:      %v\n", time.Since(start))
	fmt.Printf("Readings sent: %d\n", total)
	fmt.Printf("Failed:        %d\n", failed)
	fmt.Println("==========================================")
}

// emit produces one entity's stream: base level per entity, a daily sine
// component, gaussian noise, a ~1%-per-tick chance of a spike, and a rare
// stuck-sensor stretch.
func emit(client *http.Client, baseURL, entityID string, interval time.Duration, end time.Time) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(len(entityID))))
	base := 20.0 + rng.Float64()*10

	stuckUntil := time.Time{}
	stuckValue := 0.0

	for now := time.Now(); now.Before(end); now = time.Now() {
		hour := float64(now.Hour()) + float64(now.Minute())/60
		value := base + 5*math.Sin(2*math.Pi*hour/24) + rng.NormFloat64()

		switch {
		case now.Before(stuckUntil):
			value = stuckValue
		case rng.Float64() < 0.002:
			stuckValue = value
			stuckUntil = now.Add(15 * interval)
		case rng.Float64() < 0.01:
			value += base // spike
		}

		send(client, baseURL+"/readings", map[string]any{
			"entity_id": entityID,
			"value":     value,
			"timestamp": now.UTC().Format(time.RFC3339),
		})

		time.Sleep(interval)
	}
}

func send(client *http.Client, url string, reading map[string]any) {
	jsonData, _ := json.Marshal(reading)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	atomic.AddInt64(&sentCount, 1)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&failCount, 1)
		return
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&failCount, 1)
	}
	resp.Body.Close()
}
