package coordinator

import (
	"errors"
	"fmt"
	"strings"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/investment"
	"invest-bot-go/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	FullName     string `validate:"required,max=128"`
	Email        string `validate:"required,email,max=254"`
	ReferralCode string `validate:"omitempty,alphanum,max=32"`
}

type InvestRequest struct {
	Plan   string `validate:"required,oneof=core growth alpha"`
	Kind   string `validate:"required,oneof=btc eth usdt sol ton"`
	Amount decimal.Decimal
	Wallet string `validate:"omitempty,max=128"`
	TxId   string `validate:"required,max=128"`
	Note   string `validate:"max=512"`
}

type WithdrawRequest struct {
	Amount decimal.Decimal
	Wallet string `validate:"required,max=128"`
}

type BuyRequest struct {
	Ticker    string `validate:"required,max=10"`
	Amount    decimal.Decimal
	TxDetails string `validate:"max=256"`
}

type SellRequest struct {
	StockId int64 `validate:"required,gt=0"`
	Shares  decimal.Decimal
}

// TargetRequest names the user whose oldest pending row an operator acts on.
// Amount is optional.
type TargetRequest struct {
	UserId string `validate:"required,max=64"`
	Amount decimal.NullDecimal
}

type BalanceRequest struct {
	UserId string `validate:"required,max=64"`
	Mode   string `validate:"required,oneof=add subtract set reset"`
	Amount decimal.Decimal
	Note   string `validate:"max=512"`
}

type AddStockRequest struct {
	UserId string `validate:"required,max=64"`
	Ticker string `validate:"required,max=10"`
	Shares decimal.Decimal
	Price  decimal.Decimal
}

type EditRequest struct {
	Id    int64  `validate:"required,gt=0"`
	Field string `validate:"required,alpha,max=16"`
	Value string `validate:"required,max=64"`
}

type BroadcastRequest struct {
	Text string `validate:"required,max=4096"`
}

// check validates req and turns the first failing field into an
// invalid-input error.
func (c *Coordinator) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.ErrInternal, err)
	}
	fe := fieldErrs[0]
	return apperr.Wrap(apperr.WithMessage(apperr.ErrInvalidInput, describe(fe)), err)
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please provide %s", field)
	case "email":
		return "Please provide a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		return fmt.Sprintf("%s is too long", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}

func investmentParams(userId string, req InvestRequest) investment.SubmitParams {
	return investment.SubmitParams{
		UserId:        userId,
		Amount:        req.Amount,
		Kind:          models.CryptoKind(req.Kind),
		WalletAddress: req.Wallet,
		TxId:          req.TxId,
		Plan:          models.Plan(req.Plan),
		Note:          req.Note,
	}
}
