package leave

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE LEDGER - The only writer of Agent.Balance
// =============================================================================

// BalanceLedger debits and credits agent balances through a Store, enforcing
// Balance >= 0. Which kinds are charged is decided by the KindPolicy.
type BalanceLedger struct {
	store  Store
	policy KindPolicy
}

func NewBalanceLedger(store Store, policy KindPolicy) *BalanceLedger {
	return &BalanceLedger{store: store, policy: policy}
}

// Debit removes days from the agent's balance. Returns
// InsufficientBalanceError if the result would be negative.
func (l *BalanceLedger) Debit(ctx context.Context, agentID AgentID, days int) (decimal.Decimal, error) {
	if days < 0 {
		return decimal.Zero, invalid("days", "debit of %d days", days)
	}
	agent, err := l.agent(ctx, agentID)
	if err != nil {
		return decimal.Zero, err
	}

	requested := decimal.NewFromInt(int64(days))
	next := agent.Balance.Sub(requested)
	if next.IsNegative() {
		return agent.Balance, &InsufficientBalanceError{
			AgentID:   agentID,
			Available: agent.Balance,
			Requested: requested,
		}
	}
	if err := l.store.UpdateAgentBalance(ctx, agentID, next); err != nil {
		return agent.Balance, storageErr("debit balance", err)
	}
	return next, nil
}

// Credit adds days back. Crediting cannot violate the non-negative rule.
func (l *BalanceLedger) Credit(ctx context.Context, agentID AgentID, days int) (decimal.Decimal, error) {
	if days < 0 {
		return decimal.Zero, invalid("days", "credit of %d days", days)
	}
	agent, err := l.agent(ctx, agentID)
	if err != nil {
		return decimal.Zero, err
	}

	next := agent.Balance.Add(decimal.NewFromInt(int64(days)))
	if err := l.store.UpdateAgentBalance(ctx, agentID, next); err != nil {
		return agent.Balance, storageErr("credit balance", err)
	}
	return next, nil
}

// Charge debits rec.DaysTaken if its kind decrements the balance.
func (l *BalanceLedger) Charge(ctx context.Context, rec Record) error {
	if !l.policy.Decrements(rec.Kind) {
		return nil
	}
	_, err := l.Debit(ctx, rec.AgentID, rec.DaysTaken)
	return err
}

// Refund credits rec.DaysTaken if its kind decrements the balance.
func (l *BalanceLedger) Refund(ctx context.Context, rec Record) error {
	if !l.policy.Decrements(rec.Kind) {
		return nil
	}
	_, err := l.Credit(ctx, rec.AgentID, rec.DaysTaken)
	return err
}

func (l *BalanceLedger) agent(ctx context.Context, id AgentID) (*Agent, error) {
	agent, err := l.store.GetAgent(ctx, id)
	if err != nil {
		return nil, storageErr("load agent", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %d: %w", id, ErrAgentNotFound)
	}
	return agent, nil
}
