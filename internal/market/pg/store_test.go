package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"rentchain.org/internal/market"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetOfferMapsRow(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`select (.+) from offers where id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "tenant_id", "amount", "status",
			"message", "previous_offer_id", "created_at", "updated_at",
		}).AddRow(int64(7), int64(2), int64(3), int64(1500), "COUNTERED", "meet in the middle", int64(5), now, now))

	o, err := s.GetOffer(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetOffer: %v", err)
	}
	if o.Status != market.OfferCountered || o.PreviousOfferID != 5 || o.Amount != 1500 {
		t.Fatalf("unexpected offer: %+v", o)
	}
	expectMet(t, mock)
}

func TestCreateAssignsInitialStatus(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`insert into properties`).
		WithArgs(int64(4), "Loft", "", []byte(`["a.jpg"]`), "", int64(1800), "OPEN", "Brooklyn, NY", 2, 1.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	p, err := s.CreateProperty(context.Background(), market.Property{
		OwnerID: 4, Title: "Loft", Images: []string{"a.jpg"}, Price: 1800,
		Location: "Brooklyn, NY", Bedrooms: 2, Bathrooms: 1.0,
	})
	if err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
	if p.Status != market.PropertyOpen {
		t.Fatalf("property status = %q, want OPEN", p.Status)
	}

	mock.ExpectQuery(`insert into offers`).
		WithArgs(int64(1), int64(2), int64(900), "PENDING", "", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	o, err := s.CreateOffer(context.Background(), market.Offer{PropertyID: 1, TenantID: 2, Amount: 900})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if o.Status != market.OfferPending {
		t.Fatalf("offer status = %q, want PENDING", o.Status)
	}

	mock.ExpectQuery(`insert into agreements`).
		WithArgs(int64(1), int64(4), int64(2), int64(900), "READY_TO_SIGN").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	a, err := s.CreateAgreement(context.Background(), market.Agreement{PropertyID: 1, OwnerID: 4, TenantID: 2, FinalAmount: 900})
	if err != nil {
		t.Fatalf("CreateAgreement: %v", err)
	}
	if a.Status != market.AgreementReadyToSign {
		t.Fatalf("agreement status = %q, want READY_TO_SIGN", a.Status)
	}
	expectMet(t, mock)
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`select (.+) from users where id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "name", "email", "password_hash", "coalesce", "created_at"}))

	_, err := s.GetUser(context.Background(), 99)
	if !errors.Is(err, market.ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestSaveOfferUnknownID(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`update offers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.SaveOffer(context.Background(), market.Offer{ID: 42, Status: market.OfferRejected})
	if !errors.Is(err, market.ErrOfferNotFound) {
		t.Fatalf("want ErrOfferNotFound, got %v", err)
	}
	expectMet(t, mock)
}

func TestListPropertiesAppliesFilter(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`select (.+) from properties where owner_id = \$1 and status = \$2 and price >= \$3 order by id`).
		WithArgs(int64(4), "OPEN", int64(1000)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "title", "description", "images", "coalesce",
			"price", "status", "coalesce", "bedrooms", "bathrooms", "created_at", "updated_at",
		}).AddRow(int64(1), int64(4), "Loft", "", []byte(`["a.jpg"]`), "", int64(1800), "OPEN", "Brooklyn, NY", 2, 1.0, now, now))

	props, err := s.ListProperties(context.Background(), market.PropertyFilter{
		OwnerID:  4,
		Status:   market.PropertyOpen,
		MinPrice: 1000,
	})
	if err != nil {
		t.Fatalf("ListProperties: %v", err)
	}
	if len(props) != 1 || props[0].Images[0] != "a.jpg" || props[0].Location != "Brooklyn, NY" {
		t.Fatalf("unexpected properties: %+v", props)
	}
	expectMet(t, mock)
}

func TestGetAgreementUnsigned(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`select (.+) from agreements where id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "owner_id", "tenant_id", "final_amount",
			"status", "coalesce", "coalesce", "signed_at", "created_at",
		}).AddRow(int64(3), int64(1), int64(2), int64(5), int64(1500), "READY_TO_SIGN", "", "", nil, now))

	a, err := s.GetAgreement(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetAgreement: %v", err)
	}
	if a.Status != market.AgreementReadyToSign || a.SignedAt != nil || a.IPFSHash != "" {
		t.Fatalf("unexpected agreement: %+v", a)
	}
	expectMet(t, mock)
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`select (.+) from offers where id = \$1 for update`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "property_id", "tenant_id", "amount", "status",
			"message", "previous_offer_id", "created_at", "updated_at",
		}).AddRow(int64(1), int64(2), int64(3), int64(900), "PENDING", "", int64(0), time.Now(), time.Now()))
	mock.ExpectExec(`update offers`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx market.Store) error {
		o, err := tx.GetOffer(context.Background(), 1)
		if err != nil {
			return err
		}
		o.Status = market.OfferRejected
		_, err = tx.SaveOffer(context.Background(), o)
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	expectMet(t, mock)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(tx market.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("want callback error, got %v", err)
	}
	expectMet(t, mock)
}
