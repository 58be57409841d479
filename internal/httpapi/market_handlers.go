package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"rentchain.org/internal/market"
	"rentchain.org/internal/obs"
	"rentchain.org/internal/stream"
)

// --- properties ---

type createPropertyRequest struct {
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

func (a *API) handlePropertiesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProperties(w, r)
	case http.MethodPost:
		a.createProperty(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePropertyResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/properties/")

	if ownerPart, found := strings.CutPrefix(rest, "owner/"); found {
		ownerID, ok := parseID(ownerPart)
		if !ok {
			notFoundRoute(w, r)
			return
		}
		a.listByFilter(w, r, market.PropertyFilter{OwnerID: ownerID})
		return
	}

	id, ok := parseID(rest)
	if !ok {
		notFoundRoute(w, r)
		return
	}
	prop, err := a.svc.GetProperty(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (a *API) createProperty(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	prop, err := a.svc.CreateProperty(r.Context(), market.CreatePropertyParams(req))
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.listings.Invalidate()
	a.publish(stream.Event{
		Type:       stream.TypePropertyListed,
		PropertyID: prop.ID,
		Amount:     prop.Price,
	})
	a.audit(r.Context(), "property.create", map[string]any{
		"propertyId": prop.ID,
		"ownerId":    prop.OwnerID,
		"price":      prop.Price,
	})

	w.Header().Set("Location", "/v1/properties/"+itoa(prop.ID))
	writeJSON(w, http.StatusCreated, prop)
}

func (a *API) listProperties(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	a.listByFilter(w, r, filter)
}

func (a *API) listByFilter(w http.ResponseWriter, r *http.Request, filter market.PropertyFilter) {
	if cached, ok := a.listings.Get(filter); ok {
		writeJSON(w, http.StatusOK, newList(cached))
		return
	}
	props, err := a.svc.ListProperties(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.listings.Put(filter, props)
	writeJSON(w, http.StatusOK, newList(props))
}

func filterFromQuery(r *http.Request) (market.PropertyFilter, error) {
	var f market.PropertyFilter
	q := r.URL.Query()
	if raw := q.Get("ownerId"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return f, errInvalidQuery("ownerId")
		}
		f.OwnerID = v
	}
	if raw := q.Get("status"); raw != "" {
		s := market.PropertyStatus(raw)
		if !s.Valid() {
			return f, errInvalidQuery("status")
		}
		f.Status = s
	}
	if raw := q.Get("minPrice"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return f, errInvalidQuery("minPrice")
		}
		f.MinPrice = v
	}
	if raw := q.Get("maxPrice"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return f, errInvalidQuery("maxPrice")
		}
		f.MaxPrice = v
	}
	return f, nil
}

// --- offers ---

type submitOfferRequest struct {
	PropertyID      int64  `json:"propertyId"`
	TenantID        int64  `json:"tenantId"`
	Amount          int64  `json:"amount"`
	Message         string `json:"message"`
	PreviousOfferID int64  `json:"previousOfferId"`
}

type counterOfferRequest struct {
	Amount  int64  `json:"amount"`
	Message string `json:"message"`
}

func (a *API) handleOffersCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req submitOfferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	offer, err := a.svc.SubmitOffer(r.Context(), market.SubmitOfferParams(req))
	obs.ObserveOffer("submit", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.publish(stream.Event{
		Type:       stream.TypeOfferSubmitted,
		PropertyID: offer.PropertyID,
		OfferID:    offer.ID,
		Amount:     offer.Amount,
	})
	a.audit(r.Context(), "offer.submit", map[string]any{
		"offerId":    offer.ID,
		"propertyId": offer.PropertyID,
		"tenantId":   offer.TenantID,
		"amount":     offer.Amount,
	})

	w.Header().Set("Location", "/v1/offers/"+itoa(offer.ID))
	writeJSON(w, http.StatusCreated, offer)
}

func (a *API) handleOfferResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/offers/")

	if propPart, found := strings.CutPrefix(rest, "property/"); found {
		a.handleOffersByProperty(w, r, propPart)
		return
	}
	if tenantPart, found := strings.CutPrefix(rest, "tenant/"); found {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		tenantID, ok := parseID(tenantPart)
		if !ok {
			notFoundRoute(w, r)
			return
		}
		offers, err := a.svc.OffersByTenant(r.Context(), tenantID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(offers))
		return
	}

	id, action, hasAction := strings.Cut(rest, "/")
	offerID, ok := parseID(id)
	if !ok {
		notFoundRoute(w, r)
		return
	}

	if !hasAction {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		offer, err := a.svc.GetOffer(r.Context(), offerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, offer)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	switch action {
	case "accept":
		a.acceptOffer(w, r, offerID)
	case "reject":
		a.rejectOffer(w, r, offerID)
	case "counter":
		a.counterOffer(w, r, offerID)
	default:
		notFoundRoute(w, r)
	}
}

func (a *API) handleOffersByProperty(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, tail, hasTail := strings.Cut(rest, "/")
	propertyID, ok := parseID(id)
	if !ok {
		notFoundRoute(w, r)
		return
	}
	if hasTail {
		if tail != "chain" {
			notFoundRoute(w, r)
			return
		}
		chains, err := a.svc.NegotiationChains(r.Context(), propertyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chains": chains, "count": len(chains)})
		return
	}
	offers, err := a.svc.OffersByProperty(r.Context(), propertyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(offers))
}

func (a *API) acceptOffer(w http.ResponseWriter, r *http.Request, offerID int64) {
	res, err := a.svc.AcceptOffer(r.Context(), offerID)
	obs.ObserveOffer("accept", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.listings.Invalidate()
	a.publish(stream.Event{
		Type:        stream.TypeOfferAccepted,
		PropertyID:  res.Property.ID,
		OfferID:     res.Offer.ID,
		AgreementID: res.Agreement.ID,
		Amount:      res.Agreement.FinalAmount,
	})
	a.audit(r.Context(), "offer.accept", map[string]any{
		"offerId":     res.Offer.ID,
		"propertyId":  res.Property.ID,
		"agreementId": res.Agreement.ID,
		"finalAmount": res.Agreement.FinalAmount,
	})

	writeJSON(w, http.StatusOK, res)
}

func (a *API) rejectOffer(w http.ResponseWriter, r *http.Request, offerID int64) {
	offer, err := a.svc.RejectOffer(r.Context(), offerID)
	obs.ObserveOffer("reject", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.publish(stream.Event{
		Type:       stream.TypeOfferRejected,
		PropertyID: offer.PropertyID,
		OfferID:    offer.ID,
		Amount:     offer.Amount,
	})
	a.audit(r.Context(), "offer.reject", map[string]any{
		"offerId":    offer.ID,
		"propertyId": offer.PropertyID,
	})

	writeJSON(w, http.StatusOK, offer)
}

func (a *API) counterOffer(w http.ResponseWriter, r *http.Request, offerID int64) {
	var req counterOfferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	res, err := a.svc.CounterOffer(r.Context(), offerID, req.Amount, req.Message)
	obs.ObserveOffer("counter", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	a.publish(stream.Event{
		Type:       stream.TypeOfferCountered,
		PropertyID: res.NewOffer.PropertyID,
		OfferID:    res.NewOffer.ID,
		Amount:     res.NewOffer.Amount,
	})
	a.audit(r.Context(), "offer.counter", map[string]any{
		"offerId":         res.NewOffer.ID,
		"previousOfferId": res.PreviousOffer.ID,
		"amount":          res.NewOffer.Amount,
	})

	w.Header().Set("Location", "/v1/offers/"+itoa(res.NewOffer.ID))
	writeJSON(w, http.StatusCreated, res)
}

// --- agreements ---

type signAgreementRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (a *API) handleAgreementResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/agreements/")

	if userPart, found := strings.CutPrefix(rest, "user/"); found {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		userID, ok := parseID(userPart)
		if !ok {
			notFoundRoute(w, r)
			return
		}
		agreements, err := a.svc.AgreementsByUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newList(agreements))
		return
	}

	id, action, hasAction := strings.Cut(rest, "/")
	agreementID, ok := parseID(id)
	if !ok {
		notFoundRoute(w, r)
		return
	}

	if !hasAction {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		agreement, err := a.svc.GetAgreement(r.Context(), agreementID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agreement)
		return
	}

	if action != "sign" {
		notFoundRoute(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.signAgreement(w, r, agreementID)
}

func (a *API) signAgreement(w http.ResponseWriter, r *http.Request, agreementID int64) {
	var req signAgreementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	agreement, err := a.svc.SignAgreement(r.Context(), agreementID, req.WalletAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}

	obs.ObserveSigned()
	a.publish(stream.Event{
		Type:        stream.TypeAgreementSigned,
		PropertyID:  agreement.PropertyID,
		AgreementID: agreement.ID,
		Amount:      agreement.FinalAmount,
	})
	a.audit(r.Context(), "agreement.sign", map[string]any{
		"agreementId": agreement.ID,
		"ipfsHash":    agreement.IPFSHash,
		"txHash":      agreement.TxHash,
	})

	writeJSON(w, http.StatusOK, agreement)
}

// --- shared ---

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// newList keeps empty results as [] on the wire, not null.
func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func (a *API) publish(evt stream.Event) {
	if a.events != nil {
		a.events.Publish(evt)
	}
}

type queryError string

func (e queryError) Error() string { return string(e) + " query parameter is invalid" }

func errInvalidQuery(name string) error { return queryError(name) }
