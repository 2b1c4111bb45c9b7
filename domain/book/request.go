package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderRequest is a submission into the matching engine. It mirrors the
// OrderSubmitted payload consumed from the order-placement service.
type OrderRequest struct {
	OrderRef   string          `json:"orderRef"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limitPrice"`
}

// Validate rejects malformed requests before any book mutation.
func (r OrderRequest) Validate() error {
	switch {
	case r.OrderRef == "":
		return fmt.Errorf("%w: empty orderRef", ErrInvalidOrder)
	case r.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	case !r.Side.Valid():
		return fmt.Errorf("%w: side %q", ErrInvalidOrder, r.Side)
	case r.Quantity <= 0:
		return fmt.Errorf("%w: quantity %d", ErrInvalidOrder, r.Quantity)
	case !r.LimitPrice.IsPositive():
		return fmt.Errorf("%w: limitPrice %s", ErrInvalidOrder, r.LimitPrice)
	}
	return nil
}
