package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("invalid rate")

// Coins are whole-number platform currency; rupee values only appear at the
// payout boundary (withdrawal approvals and admin screens).

func ParseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidRate
	}
	if rate.Exponent() < -6 {
		return decimal.Zero, ErrInvalidRate
	}
	return rate, nil
}

func CoinsToRupees(coins int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(coins).Mul(rate).RoundBank(2)
}

func FormatRupees(value decimal.Decimal) string {
	return value.StringFixedBank(2)
}
