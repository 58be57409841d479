package market

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPropertyNotFound  = errors.New("property not found")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrAgreementNotFound = errors.New("agreement not found")

	ErrPropertyUnavailable = errors.New("property is no longer available")
	ErrOfferProcessed      = errors.New("offer has already been processed")
	ErrAgreementSigned     = errors.New("agreement has already been signed")

	ErrInvalidAmount     = errors.New("amount must be > 0")
	ErrInvalidTenant     = errors.New("tenant not found or invalid")
	ErrInvalidOwner      = errors.New("owner not found or invalid")
	ErrInvalidWallet     = errors.New("invalid wallet address")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
)

// Code returns the stable machine-readable code for a business error, so
// clients can branch without string-matching messages. Unknown errors map to
// INTERNAL_ERROR.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, ErrPropertyNotFound):
		return "PROPERTY_NOT_FOUND"
	case errors.Is(err, ErrOfferNotFound):
		return "OFFER_NOT_FOUND"
	case errors.Is(err, ErrAgreementNotFound):
		return "AGREEMENT_NOT_FOUND"
	case errors.Is(err, ErrPropertyUnavailable):
		return "PROPERTY_UNAVAILABLE"
	case errors.Is(err, ErrOfferProcessed):
		return "OFFER_ALREADY_PROCESSED"
	case errors.Is(err, ErrAgreementSigned):
		return "AGREEMENT_ALREADY_SIGNED"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidWallet), errors.Is(err, ErrInvalidInput):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidTenant):
		return "INVALID_TENANT"
	case errors.Is(err, ErrInvalidOwner):
		return "INVALID_OWNER"
	case errors.Is(err, ErrEmailExists):
		return "EMAIL_EXISTS"
	case errors.Is(err, ErrInvalidCredential):
		return "INVALID_CREDENTIALS"
	default:
		return "INTERNAL_ERROR"
	}
}

// NotFound reports whether err is one of the not-found variants.
func NotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPropertyNotFound) ||
		errors.Is(err, ErrOfferNotFound) ||
		errors.Is(err, ErrAgreementNotFound)
}

// Conflict reports whether err is a business-rule conflict that must never be
// retried.
func Conflict(err error) bool {
	return errors.Is(err, ErrPropertyUnavailable) ||
		errors.Is(err, ErrOfferProcessed) ||
		errors.Is(err, ErrAgreementSigned)
}
