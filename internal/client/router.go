package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/memo"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
	"github.com/rovshanmuradov/solana-router/internal/wallet"
)

// RouteRequest is everything needed to build one route instruction.
type RouteRequest struct {
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	FeeVault        solana.PublicKey
	Legs            []aggregator.SwapLeg
	Remaining       []*solana.AccountMeta
	UserMaxIn       uint64
	UserMinOut      uint64
	// Memo, when set, is recorded by the memo program in the same
	// transaction. Identical routes submitted concurrently need distinct memos.
	Memo string
}

// RouteResult is a committed route and the event it emitted, if any.
type RouteResult struct {
	*ledger.Result
	Event *aggregator.RouteExecuted
}

// RouterClient wraps the router instructions.
type RouterClient struct {
	*Client
	logger *zap.Logger
}

// NewRouterClient creates a router client on top of c.
func NewRouterClient(c *Client) *RouterClient {
	return &RouterClient{Client: c, logger: c.logger.Named("router")}
}

// InitConfig creates the router config with admin as its administrator.
func (rc *RouterClient) InitConfig(ctx context.Context, admin *wallet.Wallet, feeVault solana.PublicKey, feeBps uint16) (*ledger.Result, error) {
	ix, err := aggregator.NewInitConfigInstruction(admin.PublicKey, feeVault, feeBps)
	if err != nil {
		return nil, err
	}
	return rc.Submit(ctx, []solana.Instruction{ix}, admin)
}

// SetConfig updates the fee and optionally hands the admin role over.
func (rc *RouterClient) SetConfig(ctx context.Context, admin *wallet.Wallet, args aggregator.SetConfigArgs) (*ledger.Result, error) {
	ix, err := aggregator.NewSetConfigInstruction(admin.PublicKey, args)
	if err != nil {
		return nil, err
	}
	return rc.Submit(ctx, []solana.Instruction{ix}, admin)
}

// Pause stops routing.
func (rc *RouterClient) Pause(ctx context.Context, admin *wallet.Wallet) (*ledger.Result, error) {
	return rc.Submit(ctx, []solana.Instruction{aggregator.NewPauseInstruction(admin.PublicKey)}, admin)
}

// Unpause resumes routing.
func (rc *RouterClient) Unpause(ctx context.Context, admin *wallet.Wallet) (*ledger.Result, error) {
	return rc.Submit(ctx, []solana.Instruction{aggregator.NewUnpauseInstruction(admin.PublicKey)}, admin)
}

func (rc *RouterClient) routeInstructions(user *wallet.Wallet, req RouteRequest) ([]solana.Instruction, error) {
	ix, err := aggregator.NewRouteInstruction(aggregator.RouteAccounts{
		UserAuthority:   user.PublicKey,
		UserSource:      req.UserSource,
		UserDestination: req.UserDestination,
		FeeVault:        req.FeeVault,
		Remaining:       req.Remaining,
	}, aggregator.RouteArgs{
		Legs:       req.Legs,
		UserMaxIn:  req.UserMaxIn,
		UserMinOut: req.UserMinOut,
	})
	if err != nil {
		return nil, err
	}
	if req.Memo == "" {
		return []solana.Instruction{ix}, nil
	}
	return []solana.Instruction{memo.NewMemoInstruction(req.Memo, user.PublicKey), ix}, nil
}

// Route executes req signed by user.
func (rc *RouterClient) Route(ctx context.Context, user *wallet.Wallet, req RouteRequest) (*RouteResult, error) {
	ixs, err := rc.routeInstructions(user, req)
	if err != nil {
		return nil, err
	}

	res, err := rc.Submit(ctx, ixs, user)
	if err != nil {
		if routerErr, ok := rc.analyzer.RouterError(err); ok {
			rc.logger.Debug("Route rejected",
				zap.String("user", user.String()),
				zap.String("error", routerErr.Name))
		}
		return nil, err
	}

	events, err := aggregator.ParseRouteExecuted(res.Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse route logs: %w", err)
	}
	out := &RouteResult{Result: res}
	if len(events) > 0 {
		out.Event = events[len(events)-1]
	}
	return out, nil
}

// SimulateRoute runs req without committing it.
func (rc *RouterClient) SimulateRoute(ctx context.Context, user *wallet.Wallet, req RouteRequest) (*ledger.Result, error) {
	ixs, err := rc.routeInstructions(user, req)
	if err != nil {
		return nil, err
	}
	return rc.Simulate(ctx, ixs, user)
}

// FetchConfig loads the router config.
func (rc *RouterClient) FetchConfig(ctx context.Context) (*aggregator.Config, error) {
	address, _ := aggregator.ConfigAddress()
	acct, err := rc.ledger.GetAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return aggregator.UnmarshalConfig(acct.Data)
}

// TokenBalance returns the amount held by a token account.
func (rc *RouterClient) TokenBalance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acct, err := token.FetchAccount(ctx, rc.ledger, key)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}
