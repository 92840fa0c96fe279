// Package payments prices memberships and creates payment intents with the
// payment processor.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Plan is the price of a membership.
type Plan struct {
	Price    decimal.Decimal
	Currency string
}

// Cents returns the price in the currency's minor unit.
func (p Plan) Cents() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// Amount formats cents as a decimal amount of the plan's currency.
func Amount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

type IntentRequest struct {
	AmountCents    int64
	Currency       string
	MembershipType string
	UserEmail      string
	UserUID        string
}

type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// StripeGateway creates Stripe PaymentIntents.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil)}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.AddMetadata("membershipType", req.MembershipType)
	params.AddMetadata("userEmail", req.UserEmail)
	if req.UserUID != "" {
		params.AddMetadata("userId", req.UserUID)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}
