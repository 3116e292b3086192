package main

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"time"
)

// Sends a fake SePay notification to a local server, the way the gateway
// would deliver a bank transfer event.
type sepayPayload struct {
	ID              int64       `json:"id"`
	Gateway         string      `json:"gateway"`
	TransactionDate string      `json:"transactionDate"`
	AccountNumber   string      `json:"accountNumber"`
	Content         string      `json:"content"`
	TransferType    string      `json:"transferType"`
	TransferAmount  json.Number `json:"transferAmount"`
	ReferenceCode   string      `json:"referenceCode"`
	Description     string      `json:"description"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/api/webhooks/sepay", "Webhook URL")
	apiKey := flag.String("api-key", os.Getenv("SEPAY_API_KEY"), "API key for the Apikey header")
	txnID := flag.Int64("txn-id", 0, "SePay transaction id (random if 0)")
	content := flag.String("content", "", "Transfer content, e.g. 'TK202501011200123456 thanh toan'")
	transferType := flag.String("type", "in", "Transfer type (in|out)")
	amount := flag.String("amount", "1500000.00", "Transfer amount")
	account := flag.String("account", "0123456789", "Receiving account number")
	dryRun := flag.Bool("dry-run", false, "Only print the payload, don't send")

	flag.Parse()

	if *content == "" {
		fmt.Fprintln(os.Stderr, "Error: -content is required (put the booking/order number in it)")
		os.Exit(1)
	}

	id := *txnID
	if id == 0 {
		id = randomTxnID()
	}

	payload := sepayPayload{
		ID:              id,
		Gateway:         "MBBank",
		TransactionDate: time.Now().Format("2006-01-02 15:04:05"),
		AccountNumber:   *account,
		Content:         *content,
		TransferType:    *transferType,
		TransferAmount:  json.Number(*amount),
		ReferenceCode:   fmt.Sprintf("FT%d", id),
		Description:     *content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest("POST", *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+*apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusCreated {
		os.Exit(1)
	}
}

func randomTxnID() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		return time.Now().UnixNano() % 1_000_000_000
	}
	return 1_000_000_000 + n.Int64()
}
