package market

import "time"

// Monetary values (property price, offer amount, agreement finalAmount) are
// int64 minor units. No floats.

// Role distinguishes the two fixed marketplace roles.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool { return r == RoleOwner || r == RoleTenant }

// PropertyStatus is the listing availability state.
type PropertyStatus string

const (
	PropertyOpen   PropertyStatus = "OPEN"
	PropertyAgreed PropertyStatus = "AGREED"
)

func (s PropertyStatus) Valid() bool { return s == PropertyOpen || s == PropertyAgreed }

// OfferStatus is the negotiation state of a single offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "PENDING"
	OfferCountered OfferStatus = "COUNTERED"
	OfferAccepted  OfferStatus = "ACCEPTED"
	OfferRejected  OfferStatus = "REJECTED"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferCountered, OfferAccepted, OfferRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OfferStatus) Terminal() bool { return s == OfferAccepted || s == OfferRejected }

// AgreementStatus is the signing state of an agreement.
type AgreementStatus string

const (
	AgreementReadyToSign AgreementStatus = "READY_TO_SIGN"
	AgreementSigned      AgreementStatus = "SIGNED"
)

func (s AgreementStatus) Valid() bool {
	return s == AgreementReadyToSign || s == AgreementSigned
}

// User is a registered marketplace participant. The role is fixed at
// registration. The password hash never leaves the process.
type User struct {
	ID            int64     `json:"id"`
	Role          Role      `json:"role"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Property is a rental listing owned by exactly one owner-role user.
type Property struct {
	ID          int64          `json:"id"`
	OwnerID     int64          `json:"ownerId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Images      []string       `json:"images"`
	VideoURL    string         `json:"videoUrl,omitempty"`
	Price       int64          `json:"price"`
	Status      PropertyStatus `json:"status"`
	Location    string         `json:"location,omitempty"`
	Bedrooms    int            `json:"bedrooms,omitempty"`
	Bathrooms   float64        `json:"bathrooms,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Offer is a proposed monthly rent amount for a property. Counter-offers are
// new Offer records linked to their predecessor via PreviousOfferID, so the
// full negotiation history stays queryable.
type Offer struct {
	ID              int64       `json:"id"`
	PropertyID      int64       `json:"propertyId"`
	TenantID        int64       `json:"tenantId"`
	Amount          int64       `json:"amount"`
	Status          OfferStatus `json:"status"`
	Message         string      `json:"message,omitempty"`
	PreviousOfferID int64       `json:"previousOfferId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Agreement is the binding record spawned by an accepted offer. IPFSHash,
// TxHash and SignedAt are set exactly once, atomically with the SIGNED flip.
type Agreement struct {
	ID          int64           `json:"id"`
	PropertyID  int64           `json:"propertyId"`
	OwnerID     int64           `json:"ownerId"`
	TenantID    int64           `json:"tenantId"`
	FinalAmount int64           `json:"finalAmount"`
	Status      AgreementStatus `json:"status"`
	IPFSHash    string          `json:"ipfsHash,omitempty"`
	TxHash      string          `json:"txHash,omitempty"`
	SignedAt    *time.Time      `json:"signedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PropertyFilter narrows ListProperties results. Zero values mean "no
// constraint"; MaxPrice of 0 is treated as unbounded.
type PropertyFilter struct {
	OwnerID  int64
	Status   PropertyStatus
	MinPrice int64
	MaxPrice int64
}

// Matches reports whether p satisfies the filter.
func (f PropertyFilter) Matches(p Property) bool {
	if f.OwnerID != 0 && p.OwnerID != f.OwnerID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	return true
}

// AcceptResult is the outcome of a successful acceptance: the accepted offer,
// the property flipped to AGREED and the freshly created agreement.
type AcceptResult struct {
	Offer     Offer     `json:"offer"`
	Property  Property  `json:"property"`
	Agreement Agreement `json:"agreement"`
}

// CounterResult pairs the superseded offer with its successor.
type CounterResult struct {
	PreviousOffer Offer `json:"previousOffer"`
	NewOffer      Offer `json:"newOffer"`
}
