//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the loan ledger API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <isbn> <user1> [user2 ...]
//
// Or use the convenience environment variables:
//
//	ISBN=<isbn>  USERNAMES=<u1>,<u2>,...  TITLE=<title>  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines (one per user) all attempting to borrow the same ISBN simultaneously.
//  2. Prints how many borrows succeeded vs. were rejected as already borrowed.
//  3. Reads back each user's active loans and checks exactly one user holds the book.
//
// Prerequisites:
//   - Server must be running.
//   - The ISBN must not be on loan, and the users must not owe penalties.
//   - Without a catalog, TITLE is sent with each request.

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

type borrowResult struct {
	Username   string
	StatusCode int
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	isbn := os.Getenv("ISBN")
	title := os.Getenv("TITLE")
	if title == "" {
		title = "Concurrency Test Book"
	}

	var usernames []string
	if env := os.Getenv("USERNAMES"); env != "" {
		usernames = strings.Split(env, ",")
	}

	// Support positional args: script <isbn> [usernames...]
	args := os.Args[1:]
	if len(args) >= 1 {
		isbn = args[0]
	}
	if len(args) >= 2 {
		usernames = args[1:]
	}

	if isbn == "" {
		log.Fatal("Usage: ISBN=<isbn> USERNAMES=<u1,u2,...> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <isbn> <user1> [user2 ...]")
	}
	if len(usernames) < 2 {
		log.Fatal("At least two usernames must be provided via USERNAMES env or positional args")
	}

	fmt.Printf("=== Loan Ledger Concurrency Test ===\n")
	fmt.Printf("Server : %s\n", serverAddr)
	fmt.Printf("ISBN   : %s\n", isbn)
	fmt.Printf("Users  : %d\n\n", len(usernames))

	results := make([]borrowResult, len(usernames))
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i, u := range usernames {
		wg.Add(1)
		go func(idx int, username string) {
			defer wg.Done()
			<-start
			results[idx] = attemptBorrow(serverAddr, isbn, title, username)
		}(i, strings.TrimSpace(u))
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")

	var borrowed, rejected, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] user=%-20s err=%v\n", r.Username, r.Err)
		case r.StatusCode == http.StatusCreated:
			borrowed++
			fmt.Printf("  [LOAN] user=%-20s status=%d\n", r.Username, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			rejected++
			fmt.Printf("  [BUSY] user=%-20s status=%d\n", r.Username, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] user=%-20s status=%d unexpected response\n", r.Username, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Borrowed : %d\n", borrowed)
	fmt.Printf("Rejected : %d\n", rejected)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Total    : %d\n\n", len(usernames))

	fmt.Println("--- Invariant Check ---")
	holders := 0
	for _, u := range usernames {
		n, err := activeLoansFor(serverAddr, strings.TrimSpace(u), isbn)
		if err != nil {
			log.Fatalf("read loans for %s: %v", u, err)
		}
		holders += n
	}
	fmt.Printf("Active loans on %s across all users: %d\n", isbn, holders)

	if borrowed != 1 || holders != 1 {
		fmt.Println("\n[FAIL] expected exactly one borrower to hold the book")
		os.Exit(1)
	}
	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed, check server logs for details.\n", failures)
		os.Exit(1)
	}
	fmt.Println("[OK] exactly one active loan")
}

// attemptBorrow sends POST /loans for the given username.
func attemptBorrow(serverAddr, isbn, title, username string) borrowResult {
	body, _ := json.Marshal(map[string]any{
		"isbn":          isbn,
		"username":      username,
		"title":         title,
		"duration_days": 7,
	})

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverAddr+"/loans", "application/json", bytes.NewReader(body))
	if err != nil {
		return borrowResult{Username: username, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return borrowResult{Username: username, StatusCode: resp.StatusCode}
}

// activeLoansFor counts the user's active loans on isbn.
func activeLoansFor(serverAddr, username, isbn string) (int, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/users/%s/loans", serverAddr, username))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var loans []struct {
		ISBN string `json:"isbn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loans); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range loans {
		if l.ISBN == isbn {
			n++
		}
	}
	return n, nil
}
