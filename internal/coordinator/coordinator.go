// Package coordinator is the only surface the chat layer talks to. It
// authenticates callers, validates requests, calls the owning service and,
// once the service has committed, notifies the people affected.
package coordinator

import (
	"context"
	"time"

	"invest-bot-go/internal/account"
	"invest-bot-go/internal/admin"
	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/investment"
	"invest-bot-go/internal/notify"
	"invest-bot-go/internal/profit"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/stock"
	"invest-bot-go/internal/withdrawal"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Result is the outcome of an intent. When OK is false, Kind and Message
// describe the failure and Value is the zero value.
type Result[T any] struct {
	OK      bool
	Value   T
	Kind    apperr.Kind
	Message string
}

func ok[T any](v T) Result[T] {
	return Result[T]{OK: true, Value: v}
}

// failed maps err to a result. Internal errors are logged here with their
// cause and reach the caller only as a generic message.
func failed[T any](op string, err error) Result[T] {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		zap.L().Error("Operation failed", zap.String("op", op), zap.Error(err))
	} else {
		zap.L().Debug("Operation refused", zap.String("op", op), zap.String("kind", string(kind)), zap.Error(err))
	}
	return Result[T]{Kind: kind, Message: apperr.UserMessage(err)}
}

// Caller identifies who sent an intent.
type Caller struct {
	Id     string
	Handle string
}

// Services groups the domain services the coordinator composes.
type Services struct {
	Accounts    *account.Service
	Referrals   *referral.Service
	Investments *investment.Service
	Stocks      *stock.Service
	Withdrawals *withdrawal.Service
	Admin       *admin.Service
	Profit      *profit.Engine
}

type Options struct {
	OperatorIds   []string
	NotifyTimeout time.Duration
	Tickers       []string
}

type Coordinator struct {
	svc           Services
	notifier      notify.Notifier
	operators     map[string]bool
	operatorIds   []string
	notifyTimeout time.Duration
	tickers       []string
	validate      *validator.Validate
	Now           func() time.Time
}

func New(svc Services, notifier notify.Notifier, opts Options) *Coordinator {
	c := &Coordinator{
		svc:           svc,
		notifier:      notifier,
		operators:     make(map[string]bool, len(opts.OperatorIds)),
		notifyTimeout: opts.NotifyTimeout,
		tickers:       append([]string(nil), opts.Tickers...),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		Now:           time.Now,
	}
	for _, id := range opts.OperatorIds {
		if id != "" && !c.operators[id] {
			c.operators[id] = true
			c.operatorIds = append(c.operatorIds, id)
		}
	}
	return c
}

// IsOperator reports whether id is on the operator allow-list.
func (c *Coordinator) IsOperator(id string) bool {
	return c.operators[id]
}

func (c *Coordinator) authorise(caller Caller) error {
	if !c.IsOperator(caller.Id) {
		zap.L().Warn("Operator command refused", zap.String("caller_id", caller.Id), zap.String("handle", caller.Handle))
		return apperr.ErrUnauthorised
	}
	return nil
}

// deliver sends msg to recipient with the configured timeout. Failures are
// logged and dropped.
func (c *Coordinator) deliver(ctx context.Context, recipient string, msg notify.Message) bool {
	if recipient == "" {
		return false
	}
	if c.notifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.notifyTimeout)
		defer cancel()
	}
	if err := c.notifier.Deliver(ctx, recipient, msg); err != nil {
		zap.L().Warn("Notification failed", zap.String("recipient", recipient), zap.Error(err))
		return false
	}
	return true
}

func (c *Coordinator) notifyOperators(ctx context.Context, msg notify.Message) {
	for _, id := range c.operatorIds {
		c.deliver(ctx, id, msg)
	}
}
