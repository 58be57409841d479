package sim

import (
	"context"
	"errors"
	"fmt"

	"rentchain.org/internal/market"
)

const simPassword = "simulate123"

// Stats summarise one simulation run.
type Stats struct {
	Properties int
	Offers     int
	Counters   int
	Accepted   int
	Rejected   int
	Signed     int
}

// Run plays the scenario against the service: every listing gets a tenant
// who haggles until the bid is close enough to accept, then the agreement is
// signed. Personas are reused across runs; registration falls back to login.
func Run(ctx context.Context, svc *market.Service, gen Generator, maxRounds int) (Stats, error) {
	var stats Stats
	sc := gen.Scenario()

	owner, err := ensureUser(ctx, svc, sc.Owner, market.RoleOwner)
	if err != nil {
		return stats, fmt.Errorf("owner %s: %w", sc.Owner.Email, err)
	}
	tenants := make([]market.User, len(sc.Tenants))
	for i, p := range sc.Tenants {
		tenants[i], err = ensureUser(ctx, svc, p, market.RoleTenant)
		if err != nil {
			return stats, fmt.Errorf("tenant %s: %w", p.Email, err)
		}
	}

	for i, l := range sc.Listings {
		prop, err := svc.CreateProperty(ctx, market.CreatePropertyParams{
			OwnerID:     owner.ID,
			Title:       l.Title,
			Description: "Simulated listing for " + l.Location,
			Images:      []string{"sim.jpg"},
			Price:       l.Price,
			Location:    l.Location,
			Bedrooms:    l.Bedrooms,
			Bathrooms:   l.Bathrooms,
		})
		if err != nil {
			return stats, fmt.Errorf("list %q: %w", l.Title, err)
		}
		stats.Properties++

		tenant := tenants[i%len(tenants)]
		agreement, err := negotiate(ctx, svc, gen, prop, tenant, maxRounds, &stats)
		if err != nil {
			return stats, err
		}
		if agreement == nil {
			continue
		}

		if _, err := svc.SignAgreement(ctx, agreement.ID, gen.wallet()); err != nil {
			return stats, fmt.Errorf("sign agreement %d: %w", agreement.ID, err)
		}
		stats.Signed++
	}
	return stats, nil
}

// negotiate haggles one listing to an agreement or a rejection.
func negotiate(ctx context.Context, svc *market.Service, gen Generator, prop market.Property, tenant market.User, maxRounds int, stats *Stats) (*market.Agreement, error) {
	offer, err := svc.SubmitOffer(ctx, market.SubmitOfferParams{
		PropertyID: prop.ID,
		TenantID:   tenant.ID,
		Amount:     gen.OpeningBid(prop.Price),
		Message:    gen.Message(),
	})
	if err != nil {
		return nil, fmt.Errorf("open offer on %d: %w", prop.ID, err)
	}
	stats.Offers++

	for round := 0; ; round++ {
		if gen.Accepts(offer.Amount, prop.Price) {
			res, err := svc.AcceptOffer(ctx, offer.ID)
			if err != nil {
				return nil, fmt.Errorf("accept offer %d: %w", offer.ID, err)
			}
			stats.Accepted++
			return &res.Agreement, nil
		}
		if round >= maxRounds {
			if _, err := svc.RejectOffer(ctx, offer.ID); err != nil {
				return nil, fmt.Errorf("reject offer %d: %w", offer.ID, err)
			}
			stats.Rejected++
			return nil, nil
		}
		res, err := svc.CounterOffer(ctx, offer.ID, gen.CounterBid(offer.Amount, prop.Price), gen.Message())
		if err != nil {
			return nil, fmt.Errorf("counter offer %d: %w", offer.ID, err)
		}
		stats.Counters++
		offer = res.NewOffer
	}
}

func ensureUser(ctx context.Context, svc *market.Service, p Persona, role market.Role) (market.User, error) {
	user, err := svc.RegisterUser(ctx, market.RegisterParams{
		Role:     role,
		Name:     p.Name,
		Email:    p.Email,
		Password: simPassword,
	})
	if errors.Is(err, market.ErrEmailExists) {
		return svc.Login(ctx, p.Email, simPassword)
	}
	return user, err
}

func (g Generator) wallet() string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 42)
	buf[0], buf[1] = '0', 'x'
	for i := 2; i < len(buf); i++ {
		buf[i] = hexdigits[g.rnd.Intn(len(hexdigits))]
	}
	return string(buf)
}
