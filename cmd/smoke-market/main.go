// Command smoke-market drives one full negotiation through a running API:
// register, list, offer, counter, accept, sign. Exits non-zero on the first
// mismatch.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"rentchain.org/internal/market"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func main() {
	base := os.Getenv("RENTCHAIN_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	rand.Seed(time.Now().UnixNano())
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	run := rand.Int63n(1_000_000)
	ownerMail := fmt.Sprintf("smoke-owner-%d@rentchain.org", run)
	tenantMail := fmt.Sprintf("smoke-tenant-%d@rentchain.org", run)

	var ownerSession, tenantSession struct {
		User  market.User `json:"user"`
		Token string      `json:"token"`
	}
	c.call(http.MethodPost, "/v1/users/register", map[string]any{
		"role": "owner", "name": "Smoke Owner", "email": ownerMail, "password": "smoke-secret",
	}, &ownerSession)
	c.call(http.MethodPost, "/v1/users/register", map[string]any{
		"role": "tenant", "name": "Smoke Tenant", "email": tenantMail, "password": "smoke-secret",
	}, &tenantSession)
	c.token = ownerSession.Token

	var prop market.Property
	c.call(http.MethodPost, "/v1/properties", map[string]any{
		"ownerId":     ownerSession.User.ID,
		"title":       fmt.Sprintf("Smoke Flat %d", run),
		"description": "Short-lived listing used for smoke testing.",
		"images":      []string{"smoke.jpg"},
		"price":       2000,
	}, &prop)

	var offer market.Offer
	c.call(http.MethodPost, "/v1/offers", map[string]any{
		"propertyId": prop.ID, "tenantId": tenantSession.User.ID, "amount": 1500,
	}, &offer)

	var counter market.CounterResult
	c.call(http.MethodPost, fmt.Sprintf("/v1/offers/%d/counter", offer.ID), map[string]any{
		"amount": 1800, "message": "meet in the middle",
	}, &counter)
	if counter.PreviousOffer.Status != market.OfferCountered {
		log.Fatalf("predecessor not countered: %+v", counter.PreviousOffer)
	}

	var accepted market.AcceptResult
	c.call(http.MethodPost, fmt.Sprintf("/v1/offers/%d/accept", counter.NewOffer.ID), nil, &accepted)
	if accepted.Agreement.FinalAmount != 1800 {
		log.Fatalf("final amount mismatch: %d", accepted.Agreement.FinalAmount)
	}
	if accepted.Property.Status != market.PropertyAgreed {
		log.Fatalf("property not agreed: %+v", accepted.Property)
	}

	var signed market.Agreement
	c.call(http.MethodPost, fmt.Sprintf("/v1/agreements/%d/sign", accepted.Agreement.ID), map[string]any{
		"walletAddress": "0x00112233445566778899aabbccddeeff00112233",
	}, &signed)
	if signed.Status != market.AgreementSigned || signed.IPFSHash == "" || signed.TxHash == "" {
		log.Fatalf("signing incomplete: %+v", signed)
	}

	fmt.Printf("smoke test passed: property=%d agreement=%d ipfs=%s\n",
		prop.ID, signed.ID, signed.IPFSHash)
}

func (c *client) call(method, path string, body, dst any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s: %v", path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var raw json.RawMessage
		_ = json.NewDecoder(resp.Body).Decode(&raw)
		log.Fatalf("%s %s: status %d body %s", method, path, resp.StatusCode, raw)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			log.Fatalf("decode %s: %v", path, err)
		}
	}
}
