package steward

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EventTypeBuy         = "steward.buy"
	EventTypePriceChange = "steward.price_change"
	EventTypeForeclosure = "steward.foreclosure"
)

// Event is a notification emitted by a committed operation.
type Event struct {
	Type       string
	Attributes map[string]string
	Time       int64
}

// NewBuyEvent returns the payload of Buy(buyer, price).
func NewBuyEvent(buyer common.Address, price *uint256.Int, at int64) Event {
	return Event{
		Type: EventTypeBuy,
		Attributes: map[string]string{
			"buyer": buyer.Hex(),
			"price": price.Dec(),
		},
		Time: at,
	}
}

// NewPriceChangeEvent returns the payload of PriceChange(newPrice).
func NewPriceChangeEvent(price *uint256.Int, at int64) Event {
	return Event{
		Type:       EventTypePriceChange,
		Attributes: map[string]string{"price": price.Dec()},
		Time:       at,
	}
}

// NewForeclosureEvent returns the payload of Foreclosure(formerPatron).
// settledUntil is the boundary the remaining deposit paid up to.
func NewForeclosureEvent(former common.Address, settledUntil, at int64) Event {
	return Event{
		Type: EventTypeForeclosure,
		Attributes: map[string]string{
			"former_patron": former.Hex(),
			"settled_until": strconv.FormatInt(settledUntil, 10),
		},
		Time: at,
	}
}
