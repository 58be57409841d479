package market

import "time"

// Transitions are expressed as typed functions returning a fresh copy, so an
// invalid combination (SIGNED without hashes, ACCEPTED from a terminal state)
// is unrepresentable. The store persists whatever these return; nothing else
// mutates status fields.

func markCountered(o Offer, now time.Time) (Offer, error) {
	if o.Status.Terminal() {
		return Offer{}, ErrOfferProcessed
	}
	o.Status = OfferCountered
	o.UpdatedAt = now
	return o, nil
}

func markAccepted(o Offer, now time.Time) (Offer, error) {
	if o.Status != OfferPending && o.Status != OfferCountered {
		return Offer{}, ErrOfferProcessed
	}
	o.Status = OfferAccepted
	o.UpdatedAt = now
	return o, nil
}

func markRejected(o Offer, now time.Time) (Offer, error) {
	if o.Status.Terminal() {
		return Offer{}, ErrOfferProcessed
	}
	o.Status = OfferRejected
	o.UpdatedAt = now
	return o, nil
}

func markAgreed(p Property, now time.Time) (Property, error) {
	if p.Status != PropertyOpen {
		return Property{}, ErrPropertyUnavailable
	}
	p.Status = PropertyAgreed
	p.UpdatedAt = now
	return p, nil
}

func markSigned(a Agreement, ipfsHash, txHash string, now time.Time) (Agreement, error) {
	if a.Status == AgreementSigned {
		return Agreement{}, ErrAgreementSigned
	}
	if ipfsHash == "" || txHash == "" {
		return Agreement{}, ErrInvalidInput
	}
	signedAt := now
	a.Status = AgreementSigned
	a.IPFSHash = ipfsHash
	a.TxHash = txHash
	a.SignedAt = &signedAt
	return a, nil
}

// captureWallet sets the wallet address at most once. It returns false when
// the user already has one, leaving the record untouched.
func captureWallet(u User, wallet string) (User, bool) {
	if u.WalletAddress != "" {
		return u, false
	}
	u.WalletAddress = wallet
	return u, true
}
