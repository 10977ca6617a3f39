// Package checkout turns a cart into a completed sale and gets it to the
// remote system, directly when possible and through the offline queue
// otherwise.
package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
)

// Payment methods.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentQRIS     = "qris"
	PaymentTransfer = "transfer"
)

// CartLine is one line of the cart at the moment of payment.
// A nil ProductID marks a custom item typed in by the cashier.
type CartLine struct {
	ProductID *string         `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Sale is a paid cart.
type Sale struct {
	Lines          []CartLine      `json:"lines"`
	CustomerID     string          `json:"customer_id,omitempty"`
	TableNumber    string          `json:"table_number,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	PaymentMethod  string          `json:"payment_method"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Subtotal returns the sum of quantity * unit price over all lines.
func (s Sale) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range s.Lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// Total returns the subtotal less the discount, never below zero.
func (s Sale) Total() decimal.Decimal {
	return decimal.Max(s.Subtotal().Sub(s.Discount), decimal.Zero)
}

// Validate checks the sale before anything is written.
func (s Sale) Validate() error {
	if len(s.Lines) == 0 {
		return apperrors.New(apperrors.ErrCartEmpty, "cart is empty")
	}
	for i, line := range s.Lines {
		switch {
		case strings.TrimSpace(line.Name) == "":
			return lineError(i, "has no name")
		case line.Quantity <= 0:
			return lineError(i, fmt.Sprintf("has quantity %d", line.Quantity))
		case line.UnitPrice.IsNegative():
			return lineError(i, "has a negative price")
		case line.UnitCost.IsNegative():
			return lineError(i, "has a negative cost")
		}
	}
	if s.Discount.IsNegative() {
		return apperrors.New(apperrors.ErrValidation, "discount must not be negative")
	}
	if s.PaymentMethod == "" {
		return apperrors.New(apperrors.ErrValidation, "payment method is required")
	}
	if s.PaymentMethod == PaymentCash && s.AmountReceived.LessThan(s.Total()) {
		return apperrors.New(apperrors.ErrValidation,
			fmt.Sprintf("amount received %s is less than total %s", s.AmountReceived, s.Total()))
	}
	return nil
}

// Change returns the cash to hand back.
func (s Sale) Change() decimal.Decimal {
	if s.PaymentMethod != PaymentCash {
		return decimal.Zero
	}
	return decimal.Max(s.AmountReceived.Sub(s.Total()), decimal.Zero)
}

func lineError(i int, problem string) error {
	return apperrors.New(apperrors.ErrInvalidLineItem, fmt.Sprintf("line %d %s", i+1, problem))
}

// BuildPayload assembles the remote write for a sale. Product names and unit
// costs are snapshotted as they are at the time of sale. userID may be empty
// when nobody could be resolved.
func BuildPayload(sale Sale, cashRegisterID, userID, txID string) (models.InsertTransaction, error) {
	if err := sale.Validate(); err != nil {
		return models.InsertTransaction{}, err
	}

	items := make([]models.TransactionLineItem, len(sale.Lines))
	for i, line := range sale.Lines {
		var productID *string
		if line.ProductID != nil && *line.ProductID != "" {
			id := *line.ProductID
			productID = &id
		}
		items[i] = models.TransactionLineItem{
			LineNo:              i + 1,
			ProductID:           productID,
			ProductNameSnapshot: norm.NFC.String(strings.TrimSpace(line.Name)),
			Quantity:            line.Quantity,
			UnitPrice:           line.UnitPrice,
			UnitCostAtSale:      line.UnitCost,
		}
	}

	return models.InsertTransaction{
		Header: models.TransactionHeader{
			ID:             txID,
			UserID:         models.StringPtr(userID),
			CashRegisterID: models.StringPtr(cashRegisterID),
			TotalAmount:    sale.Total(),
			Discount:       sale.Discount,
			Status:         models.TransactionStatusCompleted,
			PaymentMethod:  models.StringPtr(sale.PaymentMethod),
			TableNumber:    models.StringPtr(sale.TableNumber),
			CustomerID:     models.StringPtr(sale.CustomerID),
			CreatedAt:      sale.CreatedAt.UnixMilli(),
		},
		Items: items,
	}, nil
}
