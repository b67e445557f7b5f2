package sqlite_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func newAgent(t *testing.T, store *sqlite.Store, ref string, balance int64) leave.AgentID {
	id, err := store.CreateAgent(context.Background(), leave.Agent{
		LastName:  "Tazi",
		FirstName: "Youssef",
		Reference: ref,
		Grade:     "Engineer",
		Balance:   decimal.NewFromInt(balance),
	})
	require.NoError(t, err)
	return id
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestSQLite_SplitAndRestore(t *testing.T) {
	// GIVEN: Annual leave March 1-15 (11 days) on a balance of 31
	// WHEN: Sick leave March 5-7 splits it, then is deleted
	// THEN: Balance goes 20 -> 23 -> 20 and the parent comes back unchanged

	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 31)
	engine := leave.NewEngine(store, calendar.New(store), leave.WithConfirmer(leave.AlwaysConfirm))

	parent, err := engine.Submit(ctx, leave.Request{AgentID: agent, Kind: leave.KindAnnual, Start: d("2024-03-01"), End: d("2024-03-15"), DaysTaken: 11})
	require.NoError(t, err)
	assert.Equal(t, "20", parent.Agent.Balance.String())

	split, err := engine.Submit(ctx, leave.Request{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-05"), End: d("2024-03-07"), DaysTaken: 3})
	require.NoError(t, err)
	assert.Equal(t, leave.CaseDivision, split.Case)
	assert.Equal(t, "23", split.Agent.Balance.String())

	recs, err := store.ListLeaves(ctx, agent)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, leave.StatusCancelled, recs[0].Status) // parent sorts first (same start, lower id)

	_, err = engine.Delete(ctx, split.Leave.ID)
	require.NoError(t, err)

	recs, err = store.ListLeaves(ctx, agent)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, parent.Leave.ID, recs[0].ID)
	assert.Equal(t, leave.StatusActive, recs[0].Status)
	assert.Equal(t, 11, recs[0].DaysTaken)

	a, err := store.GetAgent(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, "20", a.Balance.String())
}

func TestSQLite_InsufficientBalanceRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 2)
	engine := leave.NewEngine(store, calendar.New(store))

	_, err := engine.Submit(ctx, leave.Request{AgentID: agent, Kind: leave.KindAnnual, Start: d("2024-03-04"), End: d("2024-03-08"), DaysTaken: 5})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	recs, err := store.ListLeaves(ctx, agent)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 10)

	err := store.WithTx(ctx, func(s leave.Store) error {
		_, err := s.InsertLeave(ctx, leave.Record{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-01"), End: d("2024-03-01"), DaysTaken: 1})
		require.NoError(t, err)
		require.NoError(t, s.UpdateAgentBalance(ctx, agent, decimal.NewFromInt(1)))
		return leave.ErrValidation
	})
	assert.ErrorIs(t, err, leave.ErrValidation)

	recs, err := store.ListLeaves(ctx, agent)
	require.NoError(t, err)
	assert.Empty(t, recs)
	a, err := store.GetAgent(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, "10", a.Balance.String())
}

func TestSQLite_CheckConstraintsBackstopEngine(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 1)

	assert.Error(t, store.UpdateAgentBalance(ctx, agent, decimal.NewFromInt(-1)))

	_, err := store.InsertLeave(ctx, leave.Record{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-02"), End: d("2024-03-01"), DaysTaken: 1})
	assert.Error(t, err)

	_, err = store.InsertLeave(ctx, leave.Record{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-01"), End: d("2024-03-01"), DaysTaken: 0})
	assert.Error(t, err)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestSQLite_OverlapAndLineageQueries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 10)
	other := newAgent(t, store, "P-200", 10)

	insert := func(agentID leave.AgentID, kind leave.Kind, start, end string, status leave.Status) leave.LeaveID {
		id, err := store.InsertLeave(ctx, leave.Record{AgentID: agentID, Kind: kind, Start: d(start), End: d(end), DaysTaken: 1, Status: status})
		require.NoError(t, err)
		return id
	}

	oldParent := insert(agent, leave.KindAnnual, "2024-03-01", "2024-03-31", leave.StatusCancelled)
	newParent := insert(agent, leave.KindAnnual, "2024-03-04", "2024-03-15", leave.StatusCancelled)
	frag := insert(agent, leave.KindAnnual, "2024-03-04", "2024-03-05", leave.StatusActive)
	sickID := insert(agent, leave.KindSick, "2024-03-06", "2024-03-20", leave.StatusActive)
	insert(other, leave.KindAnnual, "2024-03-01", "2024-03-31", leave.StatusActive)

	over, err := store.OverlappingActiveLeaves(ctx, agent, calendar.NewRange(d("2024-03-05"), d("2024-03-06")), 0)
	require.NoError(t, err)
	require.Len(t, over, 2)
	assert.Equal(t, frag, over[0].ID)
	assert.Equal(t, sickID, over[1].ID)

	over, err = store.OverlappingActiveLeaves(ctx, agent, calendar.NewRange(d("2024-03-05"), d("2024-03-06")), sickID)
	require.NoError(t, err)
	assert.Len(t, over, 1)

	p, err := store.FindSplitParent(ctx, agent, calendar.NewRange(d("2024-03-04"), d("2024-03-05")))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, newParent, p.ID)

	p, err = store.FindSplitParent(ctx, agent, calendar.NewRange(d("2024-03-02"), d("2024-03-05")))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, oldParent, p.ID)

	within, err := store.ActiveLeavesWithin(ctx, agent, calendar.NewRange(d("2024-03-04"), d("2024-03-15")))
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, frag, within[0].ID)
}

func TestSQLite_CertificateReplaceAndCascade(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 10)
	id, err := store.InsertLeave(ctx, leave.Record{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-01"), End: d("2024-03-03"), DaysTaken: 3})
	require.NoError(t, err)

	require.NoError(t, store.SaveCertificate(ctx, leave.Certificate{LeaveID: id, DurationDays: 3, FilePath: "a.pdf"}))
	require.NoError(t, store.SaveCertificate(ctx, leave.Certificate{LeaveID: id, DurationDays: 3, DoctorName: "Dr Amrani", FilePath: "b.pdf"}))

	cert, err := store.GetCertificate(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Equal(t, "b.pdf", cert.FilePath)
	assert.Equal(t, "Dr Amrani", cert.DoctorName)

	require.NoError(t, store.DeleteLeave(ctx, id))
	cert, err = store.GetCertificate(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, cert)

	missing, err := store.GetLeave(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// AGENT DIRECTORY
// =============================================================================

func TestSQLite_AgentDirectory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := newAgent(t, store, "P-100", 10)
	newAgent(t, store, "P-200", 5)

	_, err := store.CreateAgent(ctx, leave.Agent{LastName: "Dup", Reference: "p-100"})
	assert.ErrorIs(t, err, leave.ErrReferenceConflict)

	_, err = store.CreateAgent(ctx, leave.Agent{LastName: "Neg", Reference: "P-300", Balance: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, leave.ErrValidation)

	all, err := store.ListAgents(ctx, sqlite.AgentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	page, err := store.ListAgents(ctx, sqlite.AgentFilter{Term: "P-2", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "P-200", page[0].Reference)

	n, err := store.CountAgents(ctx, sqlite.AgentFilter{Term: "tazi"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, err := store.GetAgent(ctx, first)
	require.NoError(t, err)
	a.Grade = "Senior Engineer"
	a.Balance = decimal.RequireFromString("12.5")
	require.NoError(t, store.UpdateAgent(ctx, *a))

	a, err = store.GetAgent(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer", a.Grade)
	assert.Equal(t, "12.5", a.Balance.String())

	assert.ErrorIs(t, store.UpdateAgent(ctx, leave.Agent{ID: 999, LastName: "X", Reference: "P-999"}), leave.ErrAgentNotFound)
}

func TestSQLite_DeleteAgentReturnsCertificatePaths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	agent := newAgent(t, store, "P-100", 10)
	id, err := store.InsertLeave(ctx, leave.Record{AgentID: agent, Kind: leave.KindSick, Start: d("2024-03-01"), End: d("2024-03-03"), DaysTaken: 3})
	require.NoError(t, err)
	require.NoError(t, store.SaveCertificate(ctx, leave.Certificate{LeaveID: id, FilePath: "certs/x.pdf"}))

	paths, err := store.DeleteAgent(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"certs/x.pdf"}, paths)

	a, err := store.GetAgent(ctx, agent)
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = store.DeleteAgent(ctx, agent)
	assert.ErrorIs(t, err, leave.ErrAgentNotFound)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestSQLite_Holidays(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	n, err := store.SeedDefaultHolidays(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(calendar.DefaultHolidays()), n)

	n, err = store.SeedDefaultHolidays(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding twice adds nothing")

	eid, err := store.SaveHoliday(ctx, calendar.Holiday{Date: d("2024-04-10"), Name: "Eid al-Fitr"})
	require.NoError(t, err)
	assert.NotEmpty(t, eid.ID)
	_, err = store.SaveHoliday(ctx, calendar.Holiday{Date: d("2019-06-05"), Name: "Eid al-Fitr"})
	require.NoError(t, err)

	hs, err := calendar.New(store).HolidaySet(ctx, 2024, 2024)
	require.NoError(t, err)
	assert.True(t, hs.Contains(d("2024-05-01")))
	assert.True(t, hs.Contains(d("2024-04-10")))
	assert.False(t, hs.Contains(d("2024-06-05")))

	found, err := store.DeleteHoliday(ctx, eid.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = store.DeleteHoliday(ctx, eid.ID)
	require.NoError(t, err)
	assert.False(t, found)

	all, err := store.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(calendar.DefaultHolidays())+1)
}
