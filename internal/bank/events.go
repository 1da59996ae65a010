package bank

import (
	"context"
	"time"
)

type EventType string

const (
	EventDeposit          EventType = "deposit"
	EventWithdrawal       EventType = "withdrawal"
	EventTransfer         EventType = "transfer"
	EventTransferReceived EventType = "transfer_received"
	EventBillPayment      EventType = "bill_payment"
	EventLoanDisbursed    EventType = "loan_disbursed"
	EventLoanPayment      EventType = "loan_payment"
	EventSavingsDeposit   EventType = "savings_deposit"
	EventSavingsWithdraw  EventType = "savings_withdrawal"
	EventSharesBought     EventType = "shares_bought"
	EventSharesSold       EventType = "shares_sold"
)

// Event describes a committed money movement as seen by one owner.
type Event struct {
	Type       EventType `json:"type"`
	Reference  string    `json:"reference"`
	OwnerID    string    `json:"owner_id"`
	AccountID  string    `json:"account_id,omitempty"`
	Amount     Amount    `json:"amount"`
	Fee        Amount    `json:"fee"`
	Balance    *Amount   `json:"balance,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher receives events after their atomic unit committed.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
