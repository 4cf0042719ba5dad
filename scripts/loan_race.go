//go:build ignore

// Package main fires concurrent loan requests for a single document against a running
// server and checks that exactly one of them wins.
//
// Usage:
//
//	go run ./scripts/loan_race.go <document_id> <subscriber1_id> [subscriber2_id ...]
//
// Or with environment variables:
//
//	DOCUMENT_ID=<uuid>  SUBSCRIBER_IDS=<uuid1>,<uuid2>,...  go run ./scripts/loan_race.go
//
// The document must exist and be available; the subscribers need not exist.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultServerAddr = "http://localhost:8080"

type loanResult struct {
	SubscriberID string
	StatusCode   int
	LoanID       string
	Err          error
}

func main() {
	serverAddr := os.Getenv("SERVER_URL")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	documentID := os.Getenv("DOCUMENT_ID")
	var subscriberIDs []string
	if v := os.Getenv("SUBSCRIBER_IDS"); v != "" {
		subscriberIDs = strings.Split(v, ",")
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		documentID = args[0]
	}
	if len(args) >= 2 {
		subscriberIDs = args[1:]
	}

	if documentID == "" {
		log.Fatal("Usage: DOCUMENT_ID=<uuid> SUBSCRIBER_IDS=<s1,s2,...> go run ./scripts/loan_race.go\n" +
			"  or: go run ./scripts/loan_race.go <document_id> <subscriber1_id> [subscriber2_id ...]")
	}
	if len(subscriberIDs) < 2 {
		log.Fatal("At least two subscriber IDs are needed to race")
	}

	fmt.Printf("=== Loan Race ===\n")
	fmt.Printf("Server      : %s\n", serverAddr)
	fmt.Printf("Document    : %s\n", documentID)
	fmt.Printf("Subscribers : %d\n\n", len(subscriberIDs))

	results := make([]loanResult, len(subscriberIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, sid := range subscriberIDs {
		wg.Add(1)
		go func(idx int, subscriberID string) {
			defer wg.Done()
			<-start
			results[idx] = attemptLoan(serverAddr, documentID, strings.TrimSpace(subscriberID))
		}(i, sid)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()

	var created, rejected, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] subscriber=%-38s err=%v\n", r.SubscriberID, r.Err)
		case r.StatusCode == http.StatusCreated:
			created++
			fmt.Printf("  [LOAN] subscriber=%-38s loan=%s\n", r.SubscriberID, r.LoanID)
		case r.StatusCode == http.StatusConflict:
			rejected++
			fmt.Printf("  [409 ] subscriber=%-38s not loanable\n", r.SubscriberID)
		default:
			failures++
			fmt.Printf("  [FAIL] subscriber=%-38s status=%d\n", r.SubscriberID, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Created  : %d\n", created)
	fmt.Printf("Rejected : %d\n", rejected)
	fmt.Printf("Failures : %d\n", failures)

	if available, err := documentAvailable(serverAddr, documentID); err != nil {
		fmt.Printf("Could not read document back: %v\n", err)
	} else {
		fmt.Printf("Document available afterwards: %t\n", available)
		if created == 1 && available {
			fmt.Println("[FAIL] a loan was created but the document is still available")
			os.Exit(1)
		}
	}

	if created != 1 || failures > 0 {
		fmt.Printf("\n[FAIL] expected exactly one loan and no failures\n")
		os.Exit(1)
	}
	fmt.Println("\n[OK] exactly one loan was created")
}

func attemptLoan(serverAddr, documentID, subscriberID string) loanResult {
	body := fmt.Sprintf(`{"subscriber_id":%q,"document_id":%q}`, subscriberID, documentID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverAddr+"/api/loans", "application/json", bytes.NewBufferString(body))
	if err != nil {
		return loanResult{SubscriberID: subscriberID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return loanResult{SubscriberID: subscriberID, StatusCode: resp.StatusCode, Err: fmt.Errorf("bad JSON: %s", raw)}
	}
	return loanResult{SubscriberID: subscriberID, StatusCode: resp.StatusCode, LoanID: parsed.ID}
}

func documentAvailable(serverAddr, documentID string) (bool, error) {
	resp, err := http.Get(serverAddr + "/api/documents/" + documentID)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	var doc struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return false, err
	}
	return doc.Available, nil
}
