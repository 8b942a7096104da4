// Package exchange implements a discrete-price step exchange.
//
// Orders trade at fixed price steps: the price of step n is
// n * multiplier * initialPrice. Each price step keeps FIFO queues of
// pending sell and buy orders; an incoming order consumes the opposite
// queue head-first, splitting the head order when it is larger than the
// remainder. Unmatched sell volume always queues; unmatched buy volume
// queues only when the caller asks for it.
package exchange

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.jetify.com/typeid/v2"

	"github.com/creditkit/creditkit/types"
)

// Defaults for the price formula.
const (
	DefaultInitialPrice = 10.0
	DefaultMultiplier   = 2.0
)

// orderPrefix is the TypeID prefix for exchange orders.
const orderPrefix = "ord"

// Order is a pending entry in a price-step queue.
type Order struct {
	ID        string       `json:"id"`
	Account   string       `json:"account"`
	Amount    types.Points `json:"amount"`
	Timestamp time.Time    `json:"timestamp"`
}

// Fill records one counterparty matched during an order execution.
// Partially consumed orders appear with the consumed portion.
type Fill struct {
	OrderID string       `json:"orderId"`
	Account string       `json:"account"`
	Amount  types.Points `json:"amount"`
}

// Trade is the result of executing an order.
type Trade struct {
	Matched types.Points `json:"matched"`
	Pending types.Points `json:"pending"`
	Price   types.Points `json:"price"`
	Fills   []Fill       `json:"fills"`
}

// Book holds the pending order queues of every price step.
// Safe for concurrent use.
type Book struct {
	mu sync.Mutex

	initialPrice float64
	multiplier   float64
	sellOrders   map[string][]*Order
	buyOrders    map[string][]*Order

	now func() time.Time
}

// Option configures a Book.
type Option func(*Book)

// WithInitialPrice sets the base token price.
func WithInitialPrice(price float64) Option {
	return func(b *Book) {
		if price > 0 {
			b.initialPrice = price
		}
	}
}

// WithMultiplier sets the per-step price multiplier.
func WithMultiplier(m float64) Option {
	return func(b *Book) {
		if m > 0 {
			b.multiplier = m
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		b.now = now
	}
}

// NewBook creates an empty order book.
func NewBook(opts ...Option) *Book {
	b := &Book{
		initialPrice: DefaultInitialPrice,
		multiplier:   DefaultMultiplier,
		sellOrders:   make(map[string][]*Order),
		buyOrders:    make(map[string][]*Order),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Price returns the token price at a step.
func (b *Book) Price(step int64) types.Points {
	return types.FromFloat(float64(step) * b.multiplier * b.initialPrice)
}

// Sell executes a sell order at the given price step. Matched volume pays
// out against pending buy orders FIFO; any remainder is queued as a
// pending sell order.
func (b *Book) Sell(account string, amount types.Points, step int64) Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.Price(step)
	key := price.String()
	b.ensureQueues(key)

	matched, fills := drain(b.buyOrders, key, amount)

	pending := amount.Sub(matched)
	if pending.IsPositive() {
		b.sellOrders[key] = append(b.sellOrders[key], &Order{
			ID:        newOrderID(),
			Account:   account,
			Amount:    pending,
			Timestamp: b.now(),
		})
	}

	return Trade{Matched: matched, Pending: pending, Price: price, Fills: fills}
}

// Buy executes a buy order at the given price step. Matched volume is
// taken from pending sell orders FIFO; the remainder is queued as a
// pending buy order only when autoQueue is set.
func (b *Book) Buy(account string, amount types.Points, step int64, autoQueue bool) Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.Price(step)
	key := price.String()
	b.ensureQueues(key)

	matched, fills := drain(b.sellOrders, key, amount)

	pending := amount.Sub(matched)
	if pending.IsPositive() && autoQueue {
		b.buyOrders[key] = append(b.buyOrders[key], &Order{
			ID:        newOrderID(),
			Account:   account,
			Amount:    pending,
			Timestamp: b.now(),
		})
	}

	return Trade{Matched: matched, Pending: pending, Price: price, Fills: fills}
}

// drain consumes orders from the front of queues[key] until amount is
// covered or the queue empties. A head order larger than the remainder is
// split in place.
func drain(queues map[string][]*Order, key string, amount types.Points) (types.Points, []Fill) {
	queue := queues[key]
	var matched types.Points
	var fills []Fill

	for matched.Less(amount) && len(queue) > 0 {
		head := queue[0]
		remaining := amount.Sub(matched)

		if head.Amount.Cmp(remaining) <= 0 {
			matched = matched.Add(head.Amount)
			fills = append(fills, Fill{OrderID: head.ID, Account: head.Account, Amount: head.Amount})
			queue = queue[1:]
			continue
		}

		head.Amount = head.Amount.Sub(remaining)
		matched = matched.Add(remaining)
		fills = append(fills, Fill{OrderID: head.ID, Account: head.Account, Amount: remaining})
	}

	queues[key] = queue
	return matched, fills
}

func (b *Book) ensureQueues(key string) {
	if _, ok := b.sellOrders[key]; !ok {
		b.sellOrders[key] = nil
	}
	if _, ok := b.buyOrders[key]; !ok {
		b.buyOrders[key] = nil
	}
}

// SellPendingOrders returns a snapshot of the pending sell queues keyed by
// price.
func (b *Book) SellPendingOrders() map[string][]Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.sellOrders)
}

// BuyPendingOrders returns a snapshot of the pending buy queues keyed by
// price.
func (b *Book) BuyPendingOrders() map[string][]Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.buyOrders)
}

func snapshot(queues map[string][]*Order) map[string][]Order {
	out := make(map[string][]Order, len(queues))
	for key, queue := range queues {
		if len(queue) == 0 {
			continue
		}
		orders := make([]Order, len(queue))
		for i, o := range queue {
			orders[i] = *o
		}
		out[key] = orders
	}
	return out
}

type bookState struct {
	InitialPrice float64             `json:"initialPrice"`
	Multiplier   float64             `json:"multiplier"`
	SellOrders   map[string][]*Order `json:"sellOrders"`
	BuyOrders    map[string][]*Order `json:"buyOrders"`
}

// Serialize renders the full book state as JSON.
func (b *Book) Serialize() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := bookState{
		InitialPrice: b.initialPrice,
		Multiplier:   b.multiplier,
		SellOrders:   b.sellOrders,
		BuyOrders:    b.buyOrders,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("exchange: serialize book: %w", err)
	}
	return data, nil
}

// Load replaces the book state with previously serialized JSON.
func (b *Book) Load(data []byte) error {
	var state bookState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("exchange: load book: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if state.InitialPrice > 0 {
		b.initialPrice = state.InitialPrice
	}
	if state.Multiplier > 0 {
		b.multiplier = state.Multiplier
	}
	b.sellOrders = state.SellOrders
	if b.sellOrders == nil {
		b.sellOrders = make(map[string][]*Order)
	}
	b.buyOrders = state.BuyOrders
	if b.buyOrders == nil {
		b.buyOrders = make(map[string][]*Order)
	}
	return nil
}

func newOrderID() string {
	tid, err := typeid.Generate(orderPrefix)
	if err != nil {
		panic(fmt.Sprintf("exchange: generate order id: %v", err))
	}
	return tid.String()
}
