package bank

import (
	"context"
	"fmt"
	"strings"

	"pitaka.app/internal/card"
	"pitaka.app/internal/ids"
)

// CardRequest is a card as submitted. Number and CVV are validated and dropped.
type CardRequest struct {
	CardNumber     string `json:"card_number"`
	CardholderName string `json:"cardholder_name"`
	ExpiryMonth    int    `json:"expiry_month"`
	ExpiryYear     int    `json:"expiry_year"`
	CVV            string `json:"cvv"`
	Nickname       string `json:"nickname"`
	IsDefault      bool   `json:"is_default"`
}

// AddCard validates and saves a card. The owner's first card becomes the default.
func (s *Service) AddCard(ctx context.Context, p Principal, req CardRequest) (Card, error) {
	number := card.Normalize(req.CardNumber)
	network, err := card.Validate(card.Candidate{
		Number:      number,
		Holder:      req.CardholderName,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	}, s.now())
	if err != nil {
		return Card{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	year := req.ExpiryYear
	if year < 100 {
		year += 2000
	}
	c := Card{
		ID:             ids.New(),
		OwnerID:        p.ownerID,
		CardholderName: strings.TrimSpace(req.CardholderName),
		Network:        string(network),
		MaskedNumber:   card.Mask(number),
		Last4:          card.Last4(number),
		Fingerprint:    card.Fingerprint(s.cardKey, number),
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     year,
		Nickname:       strings.TrimSpace(req.Nickname),
		IsDefault:      req.IsDefault,
	}
	err = s.unit(ctx, "add_card", func(tx Tx, _ func(Event)) error {
		if _, err := tx.CardByFingerprint(ctx, p.ownerID, c.Fingerprint); err == nil {
			return fmt.Errorf("%w: card ending %s is already saved", ErrConflict, c.Last4)
		} else if !IsNotFound(err) {
			return err
		}
		existing, err := tx.ListCards(ctx, p.ownerID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			c.IsDefault = true
		}
		if c.IsDefault {
			if err := tx.ClearDefaultCards(ctx, p.ownerID); err != nil {
				return err
			}
		}
		c.CreatedAt = s.now()
		return tx.InsertCard(ctx, &c)
	})
	if err != nil {
		return Card{}, err
	}
	return c, nil
}

func (s *Service) ListCards(ctx context.Context, p Principal) ([]Card, error) {
	var out []Card
	err := s.read(ctx, func(tx Tx) error {
		var err error
		out, err = tx.ListCards(ctx, p.ownerID)
		return err
	})
	return out, err
}

// SetDefaultCard makes id the owner's only default card.
func (s *Service) SetDefaultCard(ctx context.Context, p Principal, id string) (Card, error) {
	if err := requireID("card id", id); err != nil {
		return Card{}, err
	}
	var c Card
	err := s.unit(ctx, "default_card", func(tx Tx, _ func(Event)) error {
		var err error
		if c, err = tx.GetCard(ctx, p.ownerID, id); err != nil {
			return err
		}
		if err := tx.ClearDefaultCards(ctx, p.ownerID); err != nil {
			return err
		}
		if err := tx.SetCardDefault(ctx, p.ownerID, id); err != nil {
			return err
		}
		c.IsDefault = true
		return nil
	})
	return c, err
}

// DeleteCard removes a card. Removing the default promotes the oldest remaining card.
func (s *Service) DeleteCard(ctx context.Context, p Principal, id string) error {
	if err := requireID("card id", id); err != nil {
		return err
	}
	return s.unit(ctx, "delete_card", func(tx Tx, _ func(Event)) error {
		c, err := tx.GetCard(ctx, p.ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteCard(ctx, p.ownerID, id); err != nil {
			return err
		}
		if !c.IsDefault {
			return nil
		}
		rest, err := tx.ListCards(ctx, p.ownerID)
		if err != nil || len(rest) == 0 {
			return err
		}
		return tx.SetCardDefault(ctx, p.ownerID, rest[0].ID)
	})
}
