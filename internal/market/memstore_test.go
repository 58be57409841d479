package market

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreNotFound(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.GetUser(ctx, 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.GetProperty(ctx, 1); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("expected ErrPropertyNotFound, got %v", err)
	}
	if _, err := s.SaveOffer(ctx, Offer{ID: 9}); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("save of unknown offer must fail, got %v", err)
	}
	if _, err := s.SaveAgreement(ctx, Agreement{ID: 9}); !errors.Is(err, ErrAgreementNotFound) {
		t.Fatalf("save of unknown agreement must fail, got %v", err)
	}
}

func TestMemStoreAssignsMonotonicIDs(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		u, err := s.CreateUser(ctx, User{Role: RoleTenant, Name: "n", Email: "e"})
		if err != nil {
			t.Fatal(err)
		}
		if u.ID <= prev {
			t.Fatalf("ids must strictly increase: %d after %d", u.ID, prev)
		}
		if u.CreatedAt.IsZero() {
			t.Fatal("creation timestamp not assigned")
		}
		prev = u.ID
	}
}

func TestMemStoreFilters(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	mk := func(owner, price int64) Property {
		p, err := s.CreateProperty(ctx, Property{OwnerID: owner, Title: "t", Price: price})
		if err != nil {
			t.Fatal(err)
		}
		return p
	}
	mk(1, 900)
	cheap := mk(2, 1000)
	mk(2, 3000)

	got, err := s.ListProperties(ctx, PropertyFilter{OwnerID: 2, MaxPrice: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != cheap.ID {
		t.Fatalf("unexpected filter result: %+v", got)
	}

	got, err = s.ListProperties(ctx, PropertyFilter{MinPrice: 950, MaxPrice: 3000})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 in price range, got %d", len(got))
	}
}

func TestMemStoreSnapshotReads(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	created, err := s.CreateProperty(ctx, Property{OwnerID: 1, Title: "t", Images: []string{"a"}, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := s.GetProperty(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	snap.Images[0] = "mutated"
	snap.Title = "mutated"

	fresh, _ := s.GetProperty(ctx, created.ID)
	if fresh.Title != "t" || fresh.Images[0] != "a" {
		t.Fatalf("caller mutation leaked into the store: %+v", fresh)
	}
}

func TestMemStoreTxRollbackDiscardsWrites(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	o, err := s.CreateOffer(ctx, Offer{PropertyID: 1, TenantID: 2, Amount: 100})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx Store) error {
		mut, err := tx.GetOffer(ctx, o.ID)
		if err != nil {
			return err
		}
		mut.Status = OfferAccepted
		if _, err := tx.SaveOffer(ctx, mut); err != nil {
			return err
		}
		if _, err := tx.CreateAgreement(ctx, Agreement{PropertyID: 1, OwnerID: 1, TenantID: 2, FinalAmount: 100}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}

	got, _ := s.GetOffer(ctx, o.ID)
	if got.Status != OfferPending {
		t.Fatalf("aborted tx must leave the offer untouched, got %s", got.Status)
	}
	if _, err := s.GetAgreement(ctx, 1); !errors.Is(err, ErrAgreementNotFound) {
		t.Fatalf("aborted tx must not leak the agreement, got %v", err)
	}

	// An aborted transaction does not advance the id counters.
	a, err := s.CreateAgreement(ctx, Agreement{PropertyID: 1, OwnerID: 1, TenantID: 2, FinalAmount: 100})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 {
		t.Fatalf("unexpected agreement id %d", a.ID)
	}
}

func TestMemStoreTxCommitIsAtomic(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Store) error {
		p, err := tx.CreateProperty(ctx, Property{OwnerID: 1, Title: "t", Price: 100})
		if err != nil {
			return err
		}
		_, err = tx.CreateAgreement(ctx, Agreement{PropertyID: p.ID, OwnerID: 1, TenantID: 2, FinalAmount: 100})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetProperty(ctx, 1); err != nil {
		t.Fatalf("committed property missing: %v", err)
	}
	if _, err := s.GetAgreement(ctx, 1); err != nil {
		t.Fatalf("committed agreement missing: %v", err)
	}
}

func TestChainByPropertyOrdersBranches(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	root, _ := s.CreateOffer(ctx, Offer{PropertyID: 7, TenantID: 1, Amount: 100})
	mid, _ := s.CreateOffer(ctx, Offer{PropertyID: 7, TenantID: 1, Amount: 120, PreviousOfferID: root.ID})
	tip, _ := s.CreateOffer(ctx, Offer{PropertyID: 7, TenantID: 1, Amount: 110, PreviousOfferID: mid.ID})
	other, _ := s.CreateOffer(ctx, Offer{PropertyID: 7, TenantID: 2, Amount: 90})
	s.CreateOffer(ctx, Offer{PropertyID: 8, TenantID: 1, Amount: 500})

	chains, err := ChainByProperty(ctx, s, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(chains))
	}
	first := chains[0]
	if len(first) != 3 || first[0].ID != root.ID || first[1].ID != mid.ID || first[2].ID != tip.ID {
		t.Fatalf("unexpected chain order: %+v", first)
	}
	if len(chains[1]) != 1 || chains[1][0].ID != other.ID {
		t.Fatalf("unexpected second chain: %+v", chains[1])
	}
}
