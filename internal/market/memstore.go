package market

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore implements Store with in-process concurrency safety. Writers run
// one at a time against a cloned table set that is swapped in atomically on
// commit, so readers either see the state before a transaction or after it,
// never in between.
// NOTE: durable deployments use the pg package behind the same contract.
type MemStore struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.RWMutex
	tab  *tables
	now  func() time.Time
}

var _ Store = (*MemStore)(nil)

type tables struct {
	users      map[int64]User
	properties map[int64]Property
	offers     map[int64]Offer
	agreements map[int64]Agreement

	nextUserID      int64
	nextPropertyID  int64
	nextOfferID     int64
	nextAgreementID int64
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		tab: &tables{
			users:      make(map[int64]User),
			properties: make(map[int64]Property),
			offers:     make(map[int64]Offer),
			agreements: make(map[int64]Agreement),

			nextUserID:      1,
			nextPropertyID:  1,
			nextOfferID:     1,
			nextAgreementID: 1,
		},
		now: time.Now,
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		users:      make(map[int64]User, len(t.users)),
		properties: make(map[int64]Property, len(t.properties)),
		offers:     make(map[int64]Offer, len(t.offers)),
		agreements: make(map[int64]Agreement, len(t.agreements)),

		nextUserID:      t.nextUserID,
		nextPropertyID:  t.nextPropertyID,
		nextOfferID:     t.nextOfferID,
		nextAgreementID: t.nextAgreementID,
	}
	for id, u := range t.users {
		c.users[id] = u
	}
	for id, p := range t.properties {
		c.properties[id] = p
	}
	for id, o := range t.offers {
		c.offers[id] = o
	}
	for id, a := range t.agreements {
		c.agreements[id] = a
	}
	return c
}

// InTx clones the tables, runs fn against the clone via a transactional view,
// and swaps the clone in on success. An error from fn discards the clone, so
// partial writes are never observable.
func (s *MemStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.tab.clone()
	s.mu.RUnlock()

	if err := fn(&memTx{tab: work, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.tab = work
	s.mu.Unlock()
	return nil
}

func (s *MemStore) view() *tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// Direct writes outside an explicit transaction still go through InTx so the
// serialization guarantee holds everywhere.

func (s *MemStore) CreateUser(ctx context.Context, u User) (User, error) {
	var out User
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.CreateUser(ctx, u)
		return err
	})
	return out, err
}

func (s *MemStore) SaveUser(ctx context.Context, u User) (User, error) {
	var out User
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.SaveUser(ctx, u)
		return err
	})
	return out, err
}

func (s *MemStore) CreateProperty(ctx context.Context, p Property) (Property, error) {
	var out Property
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.CreateProperty(ctx, p)
		return err
	})
	return out, err
}

func (s *MemStore) SaveProperty(ctx context.Context, p Property) (Property, error) {
	var out Property
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.SaveProperty(ctx, p)
		return err
	})
	return out, err
}

func (s *MemStore) CreateOffer(ctx context.Context, o Offer) (Offer, error) {
	var out Offer
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.CreateOffer(ctx, o)
		return err
	})
	return out, err
}

func (s *MemStore) SaveOffer(ctx context.Context, o Offer) (Offer, error) {
	var out Offer
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.SaveOffer(ctx, o)
		return err
	})
	return out, err
}

func (s *MemStore) CreateAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	var out Agreement
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.CreateAgreement(ctx, a)
		return err
	})
	return out, err
}

func (s *MemStore) SaveAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	var out Agreement
	err := s.InTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.SaveAgreement(ctx, a)
		return err
	})
	return out, err
}

func (s *MemStore) GetUser(ctx context.Context, id int64) (User, error) {
	return getUser(s.view(), id)
}

func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return getUserByEmail(s.view(), email)
}

func (s *MemStore) GetProperty(ctx context.Context, id int64) (Property, error) {
	return getProperty(s.view(), id)
}

func (s *MemStore) ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error) {
	return listProperties(s.view(), f), nil
}

func (s *MemStore) GetOffer(ctx context.Context, id int64) (Offer, error) {
	return getOffer(s.view(), id)
}

func (s *MemStore) ListOffersByProperty(ctx context.Context, propertyID int64) ([]Offer, error) {
	return listOffers(s.view(), func(o Offer) bool { return o.PropertyID == propertyID }), nil
}

func (s *MemStore) ListOffersByTenant(ctx context.Context, tenantID int64) ([]Offer, error) {
	return listOffers(s.view(), func(o Offer) bool { return o.TenantID == tenantID }), nil
}

func (s *MemStore) GetAgreement(ctx context.Context, id int64) (Agreement, error) {
	return getAgreement(s.view(), id)
}

func (s *MemStore) ListAgreementsByUser(ctx context.Context, userID int64) ([]Agreement, error) {
	return listAgreements(s.view(), userID), nil
}

// memTx is the transactional view over a private clone. It needs no locking:
// the owning transaction is the only writer and the clone is invisible to
// readers until commit.
type memTx struct {
	tab *tables
	now func() time.Time
}

var _ Store = (*memTx)(nil)

// InTx on an open transaction just extends it.
func (t *memTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTx) CreateUser(ctx context.Context, u User) (User, error) {
	u.ID = t.tab.nextUserID
	t.tab.nextUserID++
	u.CreatedAt = t.now().UTC()
	t.tab.users[u.ID] = u
	return u, nil
}

func (t *memTx) GetUser(ctx context.Context, id int64) (User, error) {
	return getUser(t.tab, id)
}

func (t *memTx) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return getUserByEmail(t.tab, email)
}

func (t *memTx) SaveUser(ctx context.Context, u User) (User, error) {
	if _, ok := t.tab.users[u.ID]; !ok {
		return User{}, ErrUserNotFound
	}
	t.tab.users[u.ID] = u
	return u, nil
}

func (t *memTx) CreateProperty(ctx context.Context, p Property) (Property, error) {
	p.ID = t.tab.nextPropertyID
	t.tab.nextPropertyID++
	now := t.now().UTC()
	p.Status = PropertyOpen
	p.CreatedAt = now
	p.UpdatedAt = now
	t.tab.properties[p.ID] = p
	return copyProperty(p), nil
}

func (t *memTx) GetProperty(ctx context.Context, id int64) (Property, error) {
	return getProperty(t.tab, id)
}

func (t *memTx) SaveProperty(ctx context.Context, p Property) (Property, error) {
	if _, ok := t.tab.properties[p.ID]; !ok {
		return Property{}, ErrPropertyNotFound
	}
	t.tab.properties[p.ID] = p
	return copyProperty(p), nil
}

func (t *memTx) ListProperties(ctx context.Context, f PropertyFilter) ([]Property, error) {
	return listProperties(t.tab, f), nil
}

func (t *memTx) CreateOffer(ctx context.Context, o Offer) (Offer, error) {
	o.ID = t.tab.nextOfferID
	t.tab.nextOfferID++
	now := t.now().UTC()
	o.Status = OfferPending
	o.CreatedAt = now
	o.UpdatedAt = now
	t.tab.offers[o.ID] = o
	return o, nil
}

func (t *memTx) GetOffer(ctx context.Context, id int64) (Offer, error) {
	return getOffer(t.tab, id)
}

func (t *memTx) SaveOffer(ctx context.Context, o Offer) (Offer, error) {
	if _, ok := t.tab.offers[o.ID]; !ok {
		return Offer{}, ErrOfferNotFound
	}
	t.tab.offers[o.ID] = o
	return o, nil
}

func (t *memTx) ListOffersByProperty(ctx context.Context, propertyID int64) ([]Offer, error) {
	return listOffers(t.tab, func(o Offer) bool { return o.PropertyID == propertyID }), nil
}

func (t *memTx) ListOffersByTenant(ctx context.Context, tenantID int64) ([]Offer, error) {
	return listOffers(t.tab, func(o Offer) bool { return o.TenantID == tenantID }), nil
}

func (t *memTx) CreateAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	a.ID = t.tab.nextAgreementID
	t.tab.nextAgreementID++
	a.Status = AgreementReadyToSign
	a.CreatedAt = t.now().UTC()
	t.tab.agreements[a.ID] = a
	return a, nil
}

func (t *memTx) GetAgreement(ctx context.Context, id int64) (Agreement, error) {
	return getAgreement(t.tab, id)
}

func (t *memTx) SaveAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	if _, ok := t.tab.agreements[a.ID]; !ok {
		return Agreement{}, ErrAgreementNotFound
	}
	t.tab.agreements[a.ID] = a
	return a, nil
}

func (t *memTx) ListAgreementsByUser(ctx context.Context, userID int64) ([]Agreement, error) {
	return listAgreements(t.tab, userID), nil
}

// --- shared lookups ---

func getUser(t *tables, id int64) (User, error) {
	u, ok := t.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func getUserByEmail(t *tables, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range t.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func getProperty(t *tables, id int64) (Property, error) {
	p, ok := t.properties[id]
	if !ok {
		return Property{}, ErrPropertyNotFound
	}
	return copyProperty(p), nil
}

func copyProperty(p Property) Property {
	if p.Images != nil {
		images := make([]string, len(p.Images))
		copy(images, p.Images)
		p.Images = images
	}
	return p
}

func listProperties(t *tables, f PropertyFilter) []Property {
	var res []Property
	for _, p := range t.properties {
		if f.Matches(p) {
			res = append(res, copyProperty(p))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func getOffer(t *tables, id int64) (Offer, error) {
	o, ok := t.offers[id]
	if !ok {
		return Offer{}, ErrOfferNotFound
	}
	return o, nil
}

func listOffers(t *tables, keep func(Offer) bool) []Offer {
	var res []Offer
	for _, o := range t.offers {
		if keep(o) {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func getAgreement(t *tables, id int64) (Agreement, error) {
	a, ok := t.agreements[id]
	if !ok {
		return Agreement{}, ErrAgreementNotFound
	}
	return a, nil
}

func listAgreements(t *tables, userID int64) []Agreement {
	var res []Agreement
	for _, a := range t.agreements {
		if a.OwnerID == userID || a.TenantID == userID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}
