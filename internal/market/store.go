package market

import "context"

// Store is the single source of truth for marketplace entities. Create
// assigns a monotonically increasing id and creation timestamp; Save replaces
// an existing record and fails with the entity's not-found error when the id
// is unknown. All reads return snapshots; callers never mutate stored records
// in place.
//
// InTx runs fn as a unit of work: either every write made through the
// transactional view is visible afterwards, or none is. Implementations must
// serialize transactions so a read-validate-write sequence inside fn is a
// critical section.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SaveUser(ctx context.Context, u User) (User, error)

	CreateProperty(ctx context.Context, p Property) (Property, error)
	GetProperty(ctx context.Context, id int64) (Property, error)
	SaveProperty(ctx context.Context, p Property) (Property, error)
	ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error)

	CreateOffer(ctx context.Context, o Offer) (Offer, error)
	GetOffer(ctx context.Context, id int64) (Offer, error)
	SaveOffer(ctx context.Context, o Offer) (Offer, error)
	ListOffersByProperty(ctx context.Context, propertyID int64) ([]Offer, error)
	ListOffersByTenant(ctx context.Context, tenantID int64) ([]Offer, error)

	CreateAgreement(ctx context.Context, a Agreement) (Agreement, error)
	GetAgreement(ctx context.Context, id int64) (Agreement, error)
	SaveAgreement(ctx context.Context, a Agreement) (Agreement, error)
	ListAgreementsByUser(ctx context.Context, userID int64) ([]Agreement, error)

	InTx(ctx context.Context, fn func(tx Store) error) error
}

// ChainByProperty derives the ordered negotiation chains for a property from
// the predecessor links. Roots (offers with no predecessor) come first in
// creation order; each chain follows successor links, also in creation order,
// so a branching chain is still fully traversable.
func ChainByProperty(ctx context.Context, s Store, propertyID int64) ([][]Offer, error) {
	offers, err := s.ListOffersByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	successors := make(map[int64][]Offer)
	var roots []Offer
	for _, o := range offers {
		if o.PreviousOfferID == 0 {
			roots = append(roots, o)
			continue
		}
		successors[o.PreviousOfferID] = append(successors[o.PreviousOfferID], o)
	}
	var chains [][]Offer
	for _, root := range roots {
		chain := []Offer{root}
		// Walk successor links; on a branch, follow creation order.
		queue := successors[root.ID]
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			chain = append(chain, next)
			queue = append(queue, successors[next.ID]...)
		}
		chains = append(chains, chain)
	}
	return chains, nil
}
