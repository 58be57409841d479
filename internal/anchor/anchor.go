// Package anchor provides the off-chain and on-chain collaborator stand-ins
// for the signing workflow: a content-addressed document anchor and a ledger
// submission client. Production deployments swap these for real pinning and
// chain gateways behind the same interfaces.
package anchor

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"strings"

	"rentchain.org/internal/market"
)

// Simulated anchors agreements by hashing their canonical JSON encoding.
// The result is stable for a given agreement, which keeps retried signing
// attempts idempotent at the anchor layer.
type Simulated struct{}

// NewSimulated returns the in-process anchor/ledger pair.
func NewSimulated() *Simulated { return &Simulated{} }

var (
	_ market.DocumentAnchor  = (*Simulated)(nil)
	_ market.LedgerSubmitter = (*Simulated)(nil)
)

// Anchor returns an IPFS-style content hash over the agreement's identity
// fields. The "Qm" prefix mirrors a CIDv0 so downstream consumers treat it as
// opaque.
func (s *Simulated) Anchor(ctx context.Context, a market.Agreement) (string, error) {
	doc := struct {
		ID          int64 `json:"id"`
		PropertyID  int64 `json:"propertyId"`
		OwnerID     int64 `json:"ownerId"`
		TenantID    int64 `json:"tenantId"`
		FinalAmount int64 `json:"finalAmount"`
	}{a.ID, a.PropertyID, a.OwnerID, a.TenantID, a.FinalAmount}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "Qm" + strings.ToLower(enc[:44]), nil
}

// Submit returns a random 32-byte transaction hash in the usual 0x-hex form.
func (s *Simulated) Submit(ctx context.Context, a market.Agreement, walletAddress string) (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(raw[:]), nil
}
