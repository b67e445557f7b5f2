package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

func annualRecord(id leave.LeaveID, start, end string) leave.Record {
	return leave.Record{ID: id, Kind: leave.KindAnnual, Start: d(start), End: d(end), Status: leave.StatusActive}
}

func TestClassify_Cases(t *testing.T) {
	a := annualRecord(1, "2024-03-05", "2024-03-15")

	tests := []struct {
		name       string
		start, end string
		want       leave.Case
	}{
		{"same range", "2024-03-05", "2024-03-15", leave.CaseTotalReplacement},
		{"covers with margin", "2024-03-01", "2024-03-20", leave.CaseTotalReplacement},
		{"strictly inside", "2024-03-06", "2024-03-14", leave.CaseDivision},
		{"single day inside", "2024-03-10", "2024-03-10", leave.CaseDivision},
		{"starts inside, ends at end", "2024-03-10", "2024-03-15", leave.CaseTrimFromStart},
		{"starts inside, ends after", "2024-03-10", "2024-03-20", leave.CaseTrimFromStart},
		{"starts at start, ends inside", "2024-03-05", "2024-03-10", leave.CaseTrimFromEnd},
		{"starts before, ends inside", "2024-03-01", "2024-03-10", leave.CaseTrimFromEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := leave.Classify(leave.KindSick, calendar.NewRange(d(tt.start), d(tt.end)), []leave.Record{a})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_NoOverlap(t *testing.T) {
	got, err := leave.Classify(leave.KindAnnual, calendar.NewRange(d("2024-03-05"), d("2024-03-06")), nil)
	require.NoError(t, err)
	assert.Equal(t, leave.CaseNoOverlap, got)
	assert.False(t, got.Rewrites())
}

func TestClassify_Multi(t *testing.T) {
	got, err := leave.Classify(leave.KindExceptional, calendar.NewRange(d("2024-03-01"), d("2024-03-31")), []leave.Record{
		annualRecord(1, "2024-03-04", "2024-03-08"),
		annualRecord(2, "2024-03-18", "2024-03-22"),
	})
	require.NoError(t, err)
	assert.Equal(t, leave.CaseMultiReplacement, got)
	assert.True(t, got.Rewrites())
}

func TestClassify_Unsupported(t *testing.T) {
	r := calendar.NewRange(d("2024-03-06"), d("2024-03-07"))

	// Annual leave may never overlap anything.
	_, err := leave.Classify(leave.KindAnnual, r, []leave.Record{annualRecord(1, "2024-03-05", "2024-03-15")})
	assert.ErrorIs(t, err, leave.ErrValidation)

	// Non-annual leave may only replace annual leave.
	sickRec := annualRecord(2, "2024-03-05", "2024-03-08")
	sickRec.Kind = leave.KindSick
	_, err = leave.Classify(leave.KindSick, r, []leave.Record{sickRec})
	assert.ErrorIs(t, err, leave.ErrValidation)

	// Even when mixed with annual records.
	_, err = leave.Classify(leave.KindUnpaid, calendar.NewRange(d("2024-03-01"), d("2024-03-31")), []leave.Record{
		annualRecord(1, "2024-03-01", "2024-03-04"), sickRec,
	})
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestCase_String(t *testing.T) {
	assert.Equal(t, "division", leave.CaseDivision.String())
	assert.Equal(t, "case(99)", leave.Case(99).String())

	text, err := leave.CaseTrimFromEnd.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "trim_from_end", string(text))
}

func TestKindPolicy(t *testing.T) {
	p := leave.NewKindPolicy([]leave.Kind{leave.KindAnnual, "training"}, []leave.Kind{leave.KindSick, leave.KindMaternity})

	assert.True(t, p.Decrements(leave.KindAnnual))
	assert.True(t, p.Decrements("training"))
	assert.False(t, p.Decrements(leave.KindSick))
	assert.True(t, p.TakesCertificate(leave.KindMaternity))
	assert.True(t, p.Known("training"))
	assert.True(t, p.Known(leave.KindUnpaid))
	assert.False(t, p.Known("sabbatical"))

	def := leave.DefaultPolicy()
	assert.True(t, def.Decrements(leave.KindAnnual))
	assert.True(t, def.TakesCertificate(leave.KindSick))
	assert.False(t, def.Decrements(leave.KindSick))
}
