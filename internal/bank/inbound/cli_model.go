package inbound

import (
	"strings"

	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shopspring/decimal"
)

type authFlags struct {
	Account string
	PIN     string
	Code    string
}

type registerFlags struct {
	Account string
	PIN     string
	Secret  string
	Code    string
	QRFile  string
}

type resetPINFlags struct {
	Account string
	NewPIN  string
	Code    string
}

type amountFlags struct {
	auth   authFlags
	Amount string
}

type transferFlags struct {
	auth   authFlags
	To     string
	Amount string
}

type historyFlags struct {
	auth authFlags
	Of   string
}

type deleteFlags struct {
	auth   authFlags
	Target string
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, goerror.NewInvalidInput(nil, "amount", "amount is required")
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, goerror.NewInvalidInput(nil, "amount", "amount must be a decimal number")
	}

	return d, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
