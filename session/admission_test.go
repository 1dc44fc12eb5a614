package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdmissionAllowsWithinBudget(t *testing.T) {
	a := NewAdmission(8, 2)
	a.Join(0)

	ok, seq1 := a.Request(0)
	require.True(t, ok)
	ok, seq2 := a.Request(0)
	require.True(t, ok)
	require.NotEqual(t, seq1, seq2)

	// Third concurrent request from the same connection exceeds budget.
	ok, _ = a.Request(0)
	require.False(t, ok)

	a.Done(0, seq1)
	ok, _ = a.Request(0)
	require.True(t, ok)
}

func TestAdmissionRespectsLowerIndexPriority(t *testing.T) {
	a := NewAdmission(8, 2)
	// Two connections share index 0; one sits at index 1.
	a.Join(0)
	a.Join(0)
	a.Join(1)

	// Connection 0 (higher priority, lower index) takes both slots.
	ok, _ := a.Request(0)
	require.True(t, ok)
	ok, _ = a.Request(0)
	require.True(t, ok)

	// Connection 1 sees before=2 >= max, gets ServerBusy.
	ok, _ = a.Request(1)
	require.False(t, ok)
}

func TestAdmissionFreesSlotOnDone(t *testing.T) {
	a := NewAdmission(8, 1)
	a.Join(0)

	ok, seq := a.Request(0)
	require.True(t, ok)

	ok, _ = a.Request(0)
	require.False(t, ok)

	a.Done(0, seq)

	ok, _ = a.Request(0)
	require.True(t, ok)
}

func TestAdmissionLeaveClearsInFlight(t *testing.T) {
	a := NewAdmission(8, 1)
	a.Join(0)
	ok, _ := a.Request(0)
	require.True(t, ok)

	a.Leave(0)
	a.Join(0)
	ok, _ = a.Request(0)
	require.True(t, ok)
}
