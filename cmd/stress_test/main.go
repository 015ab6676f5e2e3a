package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/blood-service/internal/adapter/handler"
)

// Fires concurrent admin upserts for a single (blood_type, location) against
// a running server and checks that exactly one inventory record results.
func main() {
	baseURL := flag.String("url", "http://localhost:5003", "blood service base URL")
	totalRequests := flag.Int("n", 50, "number of concurrent upserts")
	bloodType := flag.String("blood-type", "O+", "blood type of the contended key")
	flag.Parse()

	// A fresh location keeps repeated runs independent.
	location := "stress-" + uuid.NewString()[:8]
	client := &http.Client{Timeout: 10 * time.Second}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"blood_type": *bloodType,
				"location":   location,
				"quantity":   quantity,
			})
			req, err := http.NewRequest(http.MethodPost, *baseURL+"/blood/admin/blood", bytes.NewReader(body))
			if err != nil {
				failCount.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(handler.HeaderUserID, "stress-admin")
			req.Header.Set(handler.HeaderRole, "admin")
			req.Header.Set(handler.HeaderRequestID, uuid.NewString())

			resp, err := client.Do(req)
			if err != nil {
				failCount.Add(1)
				return
			}
			resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	records, err := listInventory(client, *baseURL)
	if err != nil {
		log.Fatalf("failed to list inventory: %v", err)
	}

	matches := 0
	for _, rec := range records {
		if rec["blood_type"] == *bloodType && rec["location"] == location {
			matches++
		}
	}

	fmt.Println("========== UPSERT STRESS RESULTS ==========")
	fmt.Printf("Key:              (%s, %s)\n", *bloodType, location)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", successCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("===========================================")

	if failCount.Load() == 0 {
		fmt.Println("PASS: All upserts succeeded")
	} else {
		fmt.Printf("FAIL: %d upserts failed\n", failCount.Load())
	}

	// Listings are capped, so a crowded store may hide the record entirely.
	switch matches {
	case 1:
		fmt.Println("PASS: Exactly one inventory record for the key")
	case 0:
		fmt.Println("WARN: Record not in the first page of the listing")
	default:
		fmt.Printf("FAIL: Expected 1 record for the key, got %d\n", matches)
	}
}

func listInventory(client *http.Client, baseURL string) ([]map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/blood/admin/blood", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(handler.HeaderUserID, "stress-admin")
	req.Header.Set(handler.HeaderRole, "admin")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
