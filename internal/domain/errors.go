package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidOrder       = errors.New("invalid order parameters")
	ErrRiskLimitExceeded  = errors.New("risk limit exceeded")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrTradingSuspended   = errors.New("trading suspended")
	ErrAlreadyFilled      = errors.New("order already filled")
	ErrAlreadyCancelled   = errors.New("order already cancelled")
	ErrMarketClosed       = errors.New("offering not open for trading")
	ErrAuctionClosed      = errors.New("auction closed")
	ErrBidTooLow          = errors.New("bid below minimum increment")
	ErrRateLimited        = errors.New("rate limited")
	ErrLockHeld           = errors.New("lock already held")
)
