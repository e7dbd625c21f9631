// Package pay is the opaque payment collaborator invoked by the lifecycle
// engine when a client captures payment for a completed assignment. Card
// handling here is a stand-in for a real processor integration.
package pay

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Card carries the fields the payment form collects. All four are required.
type Card struct {
	Name   string `json:"card_name"`
	Number string `json:"card_number"`
	Expiry string `json:"card_expiry"`
	CVC    string `json:"card_cvc"`
}

var nonDigits = regexp.MustCompile(`\D`)

// Validate checks the card fields are present and plausibly shaped.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("card name is required")
	}
	if strings.TrimSpace(c.Number) == "" {
		return fmt.Errorf("card number is required")
	}
	if strings.TrimSpace(c.Expiry) == "" {
		return fmt.Errorf("card expiry is required")
	}
	if strings.TrimSpace(c.CVC) == "" {
		return fmt.Errorf("card cvc is required")
	}
	if digits := nonDigits.ReplaceAllString(c.Number, ""); len(digits) < 12 {
		return fmt.Errorf("card number is too short")
	}
	return nil
}

// Processor charges a card. Implementations return an error on decline or
// transport failure; the caller decides what state to flip on success.
type Processor interface {
	Charge(ctx context.Context, amount float64, card Card, ref string) error
}

// Simulated is the demo processor: it waits a beat and approves everything
// with a non-negative amount.
type Simulated struct {
	Delay time.Duration
}

func NewSimulated() *Simulated {
	return &Simulated{Delay: 150 * time.Millisecond}
}

func (p *Simulated) Charge(ctx context.Context, amount float64, card Card, ref string) error {
	if amount < 0 {
		return fmt.Errorf("invalid charge amount %.2f", amount)
	}
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
