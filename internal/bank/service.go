package bank

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pitaka.app/internal/ids"
)

const (
	// DefaultCurrencyLabel is the display label stamped on new accounts.
	DefaultCurrencyLabel = "PHP"

	defaultListLimit = 50
	maxListLimit     = 500

	// maxNumberAttempts bounds account number generation before giving up.
	maxNumberAttempts = 10
)

// Principal is the authenticated owner an operation acts for.
type Principal struct {
	ownerID string
	admin   bool
}

// PrincipalFor builds a principal from a verified identity.
func PrincipalFor(ownerID string, admin bool) (Principal, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ownerID: ownerID, admin: admin}, nil
}

func (p Principal) OwnerID() string { return p.ownerID }

func (p Principal) Admin() bool { return p.admin }

// Observer is notified once per finished operation.
type Observer func(op string, err error)

// Service implements the account ledger, money movements and the sub-ledgers on
// top of a Store. Every mutating call is one atomic unit.
type Service struct {
	store     Store
	now       func() time.Time
	publisher Publisher
	fees      FeePolicy
	walk      PriceWalk
	currency  string
	numbers   func() string
	observe   Observer
	cardKey   []byte
	log       *zap.Logger
}

// Option configures Service behavior.
type Option func(*Service) error

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return errors.New("bank: nil clock")
		}
		s.now = now
		return nil
	}
}

// WithPublisher sets the sink for committed events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) error {
		if p != nil {
			s.publisher = p
		}
		return nil
	}
}

// WithFeePolicy sets interbank transfer pricing.
func WithFeePolicy(f FeePolicy) Option {
	return func(s *Service) error {
		if f == nil {
			return errors.New("bank: nil fee policy")
		}
		s.fees = f
		return nil
	}
}

// WithPriceWalk replaces the simulated price movement.
func WithPriceWalk(w PriceWalk) Option {
	return func(s *Service) error {
		if w == nil {
			return errors.New("bank: nil price walk")
		}
		s.walk = w
		return nil
	}
}

func WithCurrencyLabel(label string) Option {
	return func(s *Service) error {
		if label = strings.TrimSpace(label); label != "" {
			s.currency = label
		}
		return nil
	}
}

// WithAccountNumbers replaces the account number source.
func WithAccountNumbers(gen func() string) Option {
	return func(s *Service) error {
		if gen == nil {
			return errors.New("bank: nil account number source")
		}
		s.numbers = gen
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) error {
		s.observe = o
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithCardKey sets the secret card fingerprints are keyed with. Without it a
// random per-process key is used, so duplicate detection does not survive a restart.
func WithCardKey(key []byte) Option {
	return func(s *Service) error {
		if len(key) < 16 {
			return errors.New("bank: card key must be at least 16 bytes")
		}
		s.cardKey = append([]byte(nil), key...)
		return nil
	}
}

// NewService wires a Service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("bank: store is required")
	}
	s := &Service{
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
		publisher: nopPublisher{},
		fees:      DefaultFlatFee,
		walk:      NewRandomWalk(time.Now().UnixNano()),
		currency:  DefaultCurrencyLabel,
		numbers:   ids.AccountNumber,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.cardKey == nil {
		s.cardKey = make([]byte, 32)
		if _, err := rand.Read(s.cardKey); err != nil {
			return nil, fmt.Errorf("bank: card key: %w", err)
		}
	}
	return s, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// FeePolicy reports the active interbank pricing.
func (s *Service) FeePolicy() FeePolicy { return s.fees }

// unit runs fn as one atomic unit and publishes the events it collected only
// after a successful commit.
func (s *Service) unit(ctx context.Context, op string, fn func(tx Tx, emit func(Event)) error) error {
	var pending []Event
	emit := func(e Event) {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = s.now()
		}
		pending = append(pending, e)
	}
	err := s.store.Atomically(ctx, func(tx Tx) error {
		pending = pending[:0]
		return fn(tx, emit)
	})
	if s.observe != nil {
		s.observe(op, err)
	}
	if err != nil {
		return err
	}
	for _, e := range pending {
		if perr := s.publisher.Publish(ctx, e); perr != nil {
			s.log.Warn("publish event",
				zap.String("op", op),
				zap.String("type", string(e.Type)),
				zap.String("reference", e.Reference),
				zap.Error(perr))
		}
	}
	return nil
}

// read runs fn in an atomic unit without events or observation.
func (s *Service) read(ctx context.Context, fn func(tx Tx) error) error {
	return s.store.Atomically(ctx, fn)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func requireID(what, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, what)
	}
	return nil
}

func requirePositive(a Amount) error {
	if !a.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return nil
}

func balancePtr(a Amount) *Amount { return &a }
