// Package sim generates synthetic negotiation traffic against a marketplace
// service. Used by the demo binary to produce believable activity for the
// event stream and dashboards.
package sim

import (
	"math/rand"
	"time"
)

type Persona struct {
	Name  string
	Email string
}

type Listing struct {
	Title     string
	Price     int64
	Location  string
	Bedrooms  int
	Bathrooms float64
}

type Scenario struct {
	Name     string
	Owner    Persona
	Tenants  []Persona
	Listings []Listing
	Messages []string
}

func BrooklynSeasonScenario() Scenario {
	return Scenario{
		Name:  "BrooklynRentalSeason",
		Owner: Persona{Name: "Marta Keller", Email: "marta.keller@sim.rentchain.org"},
		Tenants: []Persona{
			{Name: "Devon Price", Email: "devon.price@sim.rentchain.org"},
			{Name: "Aigerim Sadykova", Email: "aigerim.sadykova@sim.rentchain.org"},
			{Name: "Tom Okafor", Email: "tom.okafor@sim.rentchain.org"},
		},
		Listings: []Listing{
			{Title: "Greenpoint 1BR with Balcony", Price: 2400, Location: "Greenpoint, NY", Bedrooms: 1, Bathrooms: 1},
			{Title: "Park Slope Garden Duplex", Price: 3900, Location: "Park Slope, NY", Bedrooms: 2, Bathrooms: 1.5},
			{Title: "Bed-Stuy Brownstone Floor", Price: 2750, Location: "Bedford-Stuyvesant, NY", Bedrooms: 2, Bathrooms: 1},
		},
		Messages: []string{
			"Can move in on the first of next month.",
			"Would sign a two-year lease at this price.",
			"That is above my budget, meeting you halfway.",
			"Final number, utilities included.",
		},
	}
}

// Generator produces bid amounts and messages for one negotiation.
type Generator struct {
	scenario Scenario
	rnd      *rand.Rand
}

func NewGenerator(seed int64) Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return Generator{scenario: BrooklynSeasonScenario(), rnd: rand.New(rand.NewSource(seed))}
}

func (g Generator) Scenario() Scenario { return g.scenario }

// OpeningBid is 70-95% of the asking price.
func (g Generator) OpeningBid(askingPrice int64) int64 {
	pct := 70 + g.rnd.Int63n(26)
	return askingPrice * pct / 100
}

// CounterBid moves roughly halfway from the last bid toward the asking
// price, with a little jitter so runs differ.
func (g Generator) CounterBid(lastBid, askingPrice int64) int64 {
	mid := lastBid + (askingPrice-lastBid)/2
	jitter := g.rnd.Int63n(41) - 20
	next := mid + jitter
	if next <= lastBid {
		next = lastBid + 1
	}
	if next > askingPrice {
		next = askingPrice
	}
	return next
}

// Accepts reports whether a bid is close enough to the asking price to take.
func (g Generator) Accepts(bid, askingPrice int64) bool {
	return bid*100 >= askingPrice*95
}

func (g Generator) Message() string {
	msgs := g.scenario.Messages
	return msgs[g.rnd.Intn(len(msgs))]
}
