package telegram

import (
	"context"
	"errors"
	"sort"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/coordinator"

	"go.uber.org/zap"
)

// Request is a command addressed to a handler.
type Request struct {
	Caller coordinator.Caller
	Args   *CommandArgs
}

// CommandHandler answers a command with the reply text. A returned error is
// unexpected; refusals are part of the reply.
type CommandHandler func(ctx context.Context, req *Request) (string, error)

// Router dispatches commands to handlers.
type Router struct {
	handlers      map[string]CommandHandler
	adminCommands map[string]bool
	isOperator    func(id string) bool
}

func NewRouter(isOperator func(id string) bool) *Router {
	return &Router{
		handlers:      make(map[string]CommandHandler),
		adminCommands: make(map[string]bool),
		isOperator:    isOperator,
	}
}

func (r *Router) RegisterHandler(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// RegisterAdminHandler registers a handler only operators may call.
func (r *Router) RegisterAdminHandler(command string, handler CommandHandler) {
	r.adminCommands[command] = true
	r.handlers[command] = handler
}

func (r *Router) IsAdminCommand(command string) bool {
	return r.adminCommands[command]
}

// Commands lists registered commands in name order.
func (r *Router) Commands() []string {
	out := make([]string, 0, len(r.handlers))
	for cmd := range r.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// HandleCommand parses text and runs the matching handler.
func (r *Router) HandleCommand(ctx context.Context, caller coordinator.Caller, text string) (string, error) {
	args, err := ParseCommand(text)
	if err != nil {
		if errors.Is(err, ErrEmptyCommand) {
			return "Unknown command. Use /help to see available commands.", nil
		}
		return "", err
	}

	if r.adminCommands[args.Command] && !r.isOperator(caller.Id) {
		zap.L().Warn("Operator command from non-operator",
			zap.String("caller_id", caller.Id),
			zap.String("command", args.Command))
		return FormatFailure(apperr.KindUnauthorised, ""), nil
	}

	handler, exists := r.handlers[args.Command]
	if !exists {
		return "Unknown command. Use /help to see available commands.", nil
	}

	reply, err := handler(ctx, &Request{Caller: caller, Args: args})
	if err != nil {
		zap.L().Error("Command failed", zap.String("command", args.Command), zap.String("caller_id", caller.Id), zap.Error(err))
		return "Something went wrong. Please try again.", err
	}
	return reply, nil
}
