package market

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"rentchain.org/internal/auth"
)

// walletPattern is the canonical 20-byte hex address format.
var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// DocumentAnchor produces an opaque content-address for a signed agreement
// (stand-in for IPFS pinning).
type DocumentAnchor interface {
	Anchor(ctx context.Context, a Agreement) (string, error)
}

// LedgerSubmitter records the signature on an external ledger and returns an
// opaque transaction id (stand-in for a blockchain submission).
type LedgerSubmitter interface {
	Submit(ctx context.Context, a Agreement, walletAddress string) (string, error)
}

// Service drives the offer negotiation and agreement lifecycle over a Store.
// Every state transition runs inside Store.InTx, so "read status, validate,
// write status" is a single critical section per entity and concurrent
// accept/reject/counter attempts cannot both succeed.
type Service struct {
	store  Store
	anchor DocumentAnchor
	ledger LedgerSubmitter
	now    func() time.Time
}

// NewService wires the negotiation engine with its collaborators.
func NewService(store Store, anchor DocumentAnchor, ledger LedgerSubmitter) *Service {
	return &Service{
		store:  store,
		anchor: anchor,
		ledger: ledger,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Store exposes the underlying store for read-side collaborators.
func (s *Service) Store() Store { return s.store }

// RegisterParams are the fields required to create a user.
type RegisterParams struct {
	Role     Role   `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser creates a user with a unique email and a bcrypt password hash.
func (s *Service) RegisterUser(ctx context.Context, p RegisterParams) (User, error) {
	if !p.Role.Valid() || strings.TrimSpace(p.Name) == "" {
		return User{}, ErrInvalidInput
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, ErrInvalidInput
	}
	if len(p.Password) < 6 {
		return User{}, ErrInvalidInput
	}
	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return User{}, err
	}

	var out User
	err = s.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return ErrEmailExists
		}
		out, err = tx.CreateUser(ctx, User{
			Role:         p.Role,
			Name:         strings.TrimSpace(p.Name),
			Email:        email,
			PasswordHash: hash,
		})
		return err
	})
	return out, err
}

// Login verifies credentials and returns the user record. Token issuance is
// the transport layer's concern.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidCredential
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, ErrInvalidCredential
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredential
	}
	return u, nil
}

// GetUser returns a user snapshot.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.store.GetUser(ctx, id)
}

// CreatePropertyParams are the owner-supplied listing fields.
type CreatePropertyParams struct {
	OwnerID     int64    `json:"ownerId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	VideoURL    string   `json:"videoUrl"`
	Price       int64    `json:"price"`
	Location    string   `json:"location"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   float64  `json:"bathrooms"`
}

// CreateProperty validates the owner and opens a new listing.
func (s *Service) CreateProperty(ctx context.Context, p CreatePropertyParams) (Property, error) {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Description) == "" || len(p.Images) == 0 {
		return Property{}, ErrInvalidInput
	}
	if p.Price <= 0 {
		return Property{}, ErrInvalidAmount
	}

	var out Property
	err := s.store.InTx(ctx, func(tx Store) error {
		owner, err := tx.GetUser(ctx, p.OwnerID)
		if err != nil || owner.Role != RoleOwner {
			return ErrInvalidOwner
		}
		out, err = tx.CreateProperty(ctx, Property{
			OwnerID:     p.OwnerID,
			Title:       strings.TrimSpace(p.Title),
			Description: strings.TrimSpace(p.Description),
			Images:      p.Images,
			VideoURL:    p.VideoURL,
			Price:       p.Price,
			Location:    p.Location,
			Bedrooms:    p.Bedrooms,
			Bathrooms:   p.Bathrooms,
		})
		return err
	})
	return out, err
}

// GetProperty returns a listing snapshot.
func (s *Service) GetProperty(ctx context.Context, id int64) (Property, error) {
	return s.store.GetProperty(ctx, id)
}

// ListProperties returns listings matching the filter in id order.
func (s *Service) ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error) {
	return s.store.ListProperties(ctx, f)
}

// SubmitOfferParams describe a new offer. PreviousOfferID is only set for
// owner-authored counter-offers submitted through the generic creation path;
// the predecessor is flipped to COUNTERED in the same transaction.
type SubmitOfferParams struct {
	PropertyID      int64  `json:"propertyId"`
	TenantID        int64  `json:"tenantId"`
	Amount          int64  `json:"amount"`
	Message         string `json:"message"`
	PreviousOfferID int64  `json:"previousOfferId"`
}

// SubmitOffer creates a PENDING offer against an OPEN property.
func (s *Service) SubmitOffer(ctx context.Context, p SubmitOfferParams) (Offer, error) {
	if p.Amount <= 0 {
		return Offer{}, ErrInvalidAmount
	}

	var out Offer
	err := s.store.InTx(ctx, func(tx Store) error {
		prop, err := tx.GetProperty(ctx, p.PropertyID)
		if err != nil {
			return ErrPropertyNotFound
		}
		if prop.Status != PropertyOpen {
			return ErrPropertyUnavailable
		}
		tenant, err := tx.GetUser(ctx, p.TenantID)
		if err != nil || tenant.Role != RoleTenant {
			return ErrInvalidTenant
		}
		if p.PreviousOfferID != 0 {
			prev, err := tx.GetOffer(ctx, p.PreviousOfferID)
			if err != nil {
				return ErrOfferNotFound
			}
			if prev.PropertyID != p.PropertyID {
				return ErrInvalidInput
			}
			countered, err := markCountered(prev, s.now())
			if err != nil {
				return err
			}
			if _, err := tx.SaveOffer(ctx, countered); err != nil {
				return err
			}
		}
		out, err = tx.CreateOffer(ctx, Offer{
			PropertyID:      p.PropertyID,
			TenantID:        p.TenantID,
			Amount:          p.Amount,
			Message:         strings.TrimSpace(p.Message),
			PreviousOfferID: p.PreviousOfferID,
		})
		return err
	})
	return out, err
}

// CounterOffer supersedes an offer with a new amount. The referenced offer
// flips to COUNTERED and a fresh PENDING offer is created carrying the same
// property and tenant plus a back-reference, keeping the history auditable.
func (s *Service) CounterOffer(ctx context.Context, offerID, amount int64, message string) (CounterResult, error) {
	if amount <= 0 {
		return CounterResult{}, ErrInvalidAmount
	}

	var out CounterResult
	err := s.store.InTx(ctx, func(tx Store) error {
		prev, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		countered, err := markCountered(prev, s.now())
		if err != nil {
			return err
		}
		if out.PreviousOffer, err = tx.SaveOffer(ctx, countered); err != nil {
			return err
		}
		out.NewOffer, err = tx.CreateOffer(ctx, Offer{
			PropertyID:      prev.PropertyID,
			TenantID:        prev.TenantID,
			Amount:          amount,
			Message:         strings.TrimSpace(message),
			PreviousOfferID: prev.ID,
		})
		return err
	})
	if err != nil {
		return CounterResult{}, err
	}
	return out, nil
}

// AcceptOffer runs the acceptance transaction: the offer flips to ACCEPTED,
// the property to AGREED, an agreement is created with the offer's amount,
// and every other live offer on the property is cascade-rejected. All of it
// commits atomically or not at all; a missing property fails the whole
// operation with ErrPropertyNotFound.
func (s *Service) AcceptOffer(ctx context.Context, offerID int64) (AcceptResult, error) {
	var out AcceptResult
	err := s.store.InTx(ctx, func(tx Store) error {
		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		accepted, err := markAccepted(offer, s.now())
		if err != nil {
			return err
		}
		prop, err := tx.GetProperty(ctx, offer.PropertyID)
		if err != nil {
			return ErrPropertyNotFound
		}
		agreed, err := markAgreed(prop, s.now())
		if err != nil {
			return err
		}

		if out.Offer, err = tx.SaveOffer(ctx, accepted); err != nil {
			return err
		}
		if out.Property, err = tx.SaveProperty(ctx, agreed); err != nil {
			return err
		}
		out.Agreement, err = tx.CreateAgreement(ctx, Agreement{
			PropertyID:  prop.ID,
			OwnerID:     prop.OwnerID,
			TenantID:    offer.TenantID,
			FinalAmount: offer.Amount,
		})
		if err != nil {
			return err
		}

		// Cascade: no sibling or successor may stay PENDING once the
		// property is off the market.
		siblings, err := tx.ListOffersByProperty(ctx, prop.ID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID == offerID || sib.Status.Terminal() {
				continue
			}
			rejected, err := markRejected(sib, s.now())
			if err != nil {
				return err
			}
			if _, err := tx.SaveOffer(ctx, rejected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}
	return out, nil
}

// RejectOffer terminally rejects a live offer. No side effects.
func (s *Service) RejectOffer(ctx context.Context, offerID int64) (Offer, error) {
	var out Offer
	err := s.store.InTx(ctx, func(tx Store) error {
		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			return err
		}
		rejected, err := markRejected(offer, s.now())
		if err != nil {
			return err
		}
		out, err = tx.SaveOffer(ctx, rejected)
		return err
	})
	return out, err
}

// GetOffer returns an offer snapshot.
func (s *Service) GetOffer(ctx context.Context, id int64) (Offer, error) {
	return s.store.GetOffer(ctx, id)
}

// OffersByProperty lists a property's offers in creation order.
func (s *Service) OffersByProperty(ctx context.Context, propertyID int64) ([]Offer, error) {
	return s.store.ListOffersByProperty(ctx, propertyID)
}

// OffersByTenant lists a tenant's offers in creation order.
func (s *Service) OffersByTenant(ctx context.Context, tenantID int64) ([]Offer, error) {
	return s.store.ListOffersByTenant(ctx, tenantID)
}

// NegotiationChains returns the property's offers grouped into ordered
// predecessor chains.
func (s *Service) NegotiationChains(ctx context.Context, propertyID int64) ([][]Offer, error) {
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	return ChainByProperty(ctx, s.store, propertyID)
}

// GetAgreement returns an agreement snapshot.
func (s *Service) GetAgreement(ctx context.Context, id int64) (Agreement, error) {
	return s.store.GetAgreement(ctx, id)
}

// AgreementsByUser lists agreements where the user is owner or tenant.
func (s *Service) AgreementsByUser(ctx context.Context, userID int64) ([]Agreement, error) {
	return s.store.ListAgreementsByUser(ctx, userID)
}

// SignAgreement performs the one-time READY_TO_SIGN -> SIGNED transition.
// The document anchor and ledger submission run outside the critical section
// (they may be slow); the status flip re-validates inside the transaction, so
// a concurrent double-sign loses with ErrAgreementSigned and at most one set
// of hashes is ever persisted. If the owner has no wallet address yet, the
// submitted one is captured on their record in the same transaction.
func (s *Service) SignAgreement(ctx context.Context, agreementID int64, walletAddress string) (Agreement, error) {
	if !walletPattern.MatchString(walletAddress) {
		return Agreement{}, ErrInvalidWallet
	}

	agreement, err := s.store.GetAgreement(ctx, agreementID)
	if err != nil {
		return Agreement{}, err
	}
	if agreement.Status == AgreementSigned {
		return Agreement{}, ErrAgreementSigned
	}

	ipfsHash, err := s.anchor.Anchor(ctx, agreement)
	if err != nil {
		return Agreement{}, err
	}
	txHash, err := s.ledger.Submit(ctx, agreement, walletAddress)
	if err != nil {
		return Agreement{}, err
	}

	var out Agreement
	err = s.store.InTx(ctx, func(tx Store) error {
		current, err := tx.GetAgreement(ctx, agreementID)
		if err != nil {
			return err
		}
		signed, err := markSigned(current, ipfsHash, txHash, s.now().UTC())
		if err != nil {
			return err
		}
		if out, err = tx.SaveAgreement(ctx, signed); err != nil {
			return err
		}

		owner, err := tx.GetUser(ctx, current.OwnerID)
		if err != nil {
			// The agreement references a valid owner by construction;
			// a missing record here is a store fault.
			return err
		}
		if updated, changed := captureWallet(owner, walletAddress); changed {
			if _, err := tx.SaveUser(ctx, updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Agreement{}, err
	}
	return out, nil
}
