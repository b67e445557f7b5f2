package leave_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	mem    *store.TxMemory
	engine *leave.Engine
	files  *fakeFiles
	agent  leave.AgentID
}

func newFixture(t *testing.T, balance int64, opts ...leave.Option) *fixture {
	t.Helper()
	mem := store.NewTxMemory()
	return newFixtureOn(t, mem, mem, balance, opts...)
}

// newFixtureOn builds the engine over txStore while seeding through mem, so
// tests can wrap the store with failure injection.
func newFixtureOn(t *testing.T, mem *store.TxMemory, txStore leave.TxStore, balance int64, opts ...leave.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	agentID, err := mem.CreateAgent(ctx, leave.Agent{
		LastName:  "Alaoui",
		FirstName: "Samira",
		Reference: "A-1001",
		Grade:     "Administrator",
		Balance:   decimal.NewFromInt(balance),
	})
	require.NoError(t, err)

	files := newFakeFiles()
	opts = append([]leave.Option{
		leave.WithConfirmer(leave.AlwaysConfirm),
		leave.WithCertificateFiles(files),
	}, opts...)
	engine := leave.NewEngine(txStore, calendar.New(mem), opts...)

	return &fixture{mem: mem, engine: engine, files: files, agent: agentID}
}

func d(s string) calendar.Date { return calendar.MustParseDate(s) }

func annual(agent leave.AgentID, start, end string, days int) leave.Request {
	return leave.Request{AgentID: agent, Kind: leave.KindAnnual, Start: d(start), End: d(end), DaysTaken: days}
}

func sick(agent leave.AgentID, start, end string, days int) leave.Request {
	return leave.Request{AgentID: agent, Kind: leave.KindSick, Start: d(start), End: d(end), DaysTaken: days}
}

func (f *fixture) submit(t *testing.T, req leave.Request) *leave.Outcome {
	t.Helper()
	out, err := f.engine.Submit(context.Background(), req)
	require.NoError(t, err)
	return out
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	a, err := f.mem.GetAgent(context.Background(), f.agent)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance.String()
}

func (f *fixture) leaves(t *testing.T) []leave.Record {
	t.Helper()
	recs, err := f.mem.ListLeaves(context.Background(), f.agent)
	require.NoError(t, err)
	return recs
}

func (f *fixture) active(t *testing.T) []leave.Record {
	t.Helper()
	var out []leave.Record
	for _, r := range f.leaves(t) {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

func (f *fixture) get(t *testing.T, id leave.LeaveID) *leave.Record {
	t.Helper()
	r, err := f.mem.GetLeave(context.Background(), id)
	require.NoError(t, err)
	return r
}

func ranges(recs []leave.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, fmt.Sprintf("%s %s..%s/%d", r.Kind, r.Start, r.End, r.DaysTaken))
	}
	return out
}

// =============================================================================
// FAKES
// =============================================================================

type fakeFiles struct {
	stored    map[string]bool
	removed   []string
	failStore error
}

func newFakeFiles() *fakeFiles { return &fakeFiles{stored: map[string]bool{}} }

func (f *fakeFiles) Store(sourcePath, agentRef string, leaveID leave.LeaveID) (string, error) {
	if f.failStore != nil {
		return "", f.failStore
	}
	p := fmt.Sprintf("certs/cert_%s_%d.pdf", agentRef, leaveID)
	f.stored[p] = true
	return p, nil
}

func (f *fakeFiles) Remove(path string) error {
	delete(f.stored, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeFiles) Exists(path string) bool { return f.stored[path] }

// failingStore fails the Nth InsertLeave made inside a transaction.
type failingStore struct {
	leave.TxStore
	failInsertAt int
	inserts      int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s leave.Store) error {
		return fn(&failingView{Store: s, parent: f})
	})
}

type failingView struct {
	leave.Store
	parent *failingStore
}

func (v *failingView) InsertLeave(ctx context.Context, rec leave.Record) (leave.LeaveID, error) {
	v.parent.inserts++
	if v.parent.inserts == v.parent.failInsertAt {
		return 0, errDiskFull
	}
	return v.Store.InsertLeave(ctx, rec)
}

// blindStore never finds Active leaves inside a range, in or out of a
// transaction, as a store with a broken within-range query would.
type blindStore struct {
	leave.TxStore
}

func (b blindStore) ActiveLeavesWithin(context.Context, leave.AgentID, calendar.Range) ([]leave.Record, error) {
	return nil, nil
}

func (b blindStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	return b.TxStore.WithTx(ctx, func(s leave.Store) error {
		return fn(blindView{Store: s})
	})
}

type blindView struct {
	leave.Store
}

func (blindView) ActiveLeavesWithin(context.Context, leave.AgentID, calendar.Range) ([]leave.Record, error) {
	return nil, nil
}
