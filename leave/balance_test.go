package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
)

func TestBalanceLedger_DebitCannotGoNegative(t *testing.T) {
	// GIVEN: Balance 3
	// WHEN: Debiting 3, then 1
	// THEN: First succeeds at exactly zero, second fails and leaves zero

	ctx := context.Background()
	f := newFixture(t, 3)
	ledger := leave.NewBalanceLedger(f.mem, leave.DefaultPolicy())

	got, err := ledger.Debit(ctx, f.agent, 3)
	require.NoError(t, err)
	assert.Equal(t, "0", got.String())

	_, err = ledger.Debit(ctx, f.agent, 1)
	var balErr *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, f.agent, balErr.AgentID)
	assert.Equal(t, "0", f.balance(t))
}

func TestBalanceLedger_CreditAlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ledger := leave.NewBalanceLedger(f.mem, leave.DefaultPolicy())

	got, err := ledger.Credit(ctx, f.agent, 11)
	require.NoError(t, err)
	assert.Equal(t, "11", got.String())
}

func TestBalanceLedger_NegativeAmountsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	ledger := leave.NewBalanceLedger(f.mem, leave.DefaultPolicy())

	_, err := ledger.Debit(ctx, f.agent, -2)
	assert.ErrorIs(t, err, leave.ErrValidation)
	_, err = ledger.Credit(ctx, f.agent, -2)
	assert.ErrorIs(t, err, leave.ErrValidation)
	assert.Equal(t, "5", f.balance(t))
}

func TestBalanceLedger_ChargeFollowsPolicy(t *testing.T) {
	// GIVEN: A policy where sick leave is paid from the balance
	// THEN: Charge debits sick leave and skips unpaid leave

	ctx := context.Background()
	f := newFixture(t, 10)
	policy := leave.NewKindPolicy([]leave.Kind{leave.KindAnnual, leave.KindSick}, nil)
	ledger := leave.NewBalanceLedger(f.mem, policy)

	require.NoError(t, ledger.Charge(ctx, leave.Record{AgentID: f.agent, Kind: leave.KindSick, DaysTaken: 4}))
	assert.Equal(t, "6", f.balance(t))

	require.NoError(t, ledger.Charge(ctx, leave.Record{AgentID: f.agent, Kind: leave.KindUnpaid, DaysTaken: 4}))
	assert.Equal(t, "6", f.balance(t))

	require.NoError(t, ledger.Refund(ctx, leave.Record{AgentID: f.agent, Kind: leave.KindSick, DaysTaken: 4}))
	assert.Equal(t, "10", f.balance(t))
}

func TestBalanceLedger_UnknownAgent(t *testing.T) {
	f := newFixture(t, 5)
	ledger := leave.NewBalanceLedger(f.mem, leave.DefaultPolicy())

	_, err := ledger.Credit(context.Background(), 404, 1)
	assert.ErrorIs(t, err, leave.ErrAgentNotFound)
}

func TestEngine_SickDecrementingPolicy_ChargesSickLeave(t *testing.T) {
	// GIVEN: Sick leave configured to decrement the balance
	// WHEN: Sick leave March 5-7 splits annual March 1-15
	// THEN: 31 - 11 + 11 - 2 - 6 - 3 = 20

	policy := leave.NewKindPolicy([]leave.Kind{leave.KindAnnual, leave.KindSick}, []leave.Kind{leave.KindSick})
	f := newFixture(t, 31, leave.WithPolicy(policy))
	f.submit(t, annual(f.agent, "2024-03-01", "2024-03-15", 11))

	f.submit(t, sick(f.agent, "2024-03-05", "2024-03-07", 3))
	assert.Equal(t, "20", f.balance(t))
}
