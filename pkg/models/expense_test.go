package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bpsSum(allocs []ExpenseAllocation) int64 {
	var sum int64
	for _, a := range allocs {
		sum += a.PercentBps
	}
	return sum
}

func centsSum(allocs []ExpenseAllocation) int64 {
	var sum int64
	for _, a := range allocs {
		sum += a.AmountCents
	}
	return sum
}

func TestReconcileAllocationsExactSplit(t *testing.T) {
	out, err := ReconcileAllocations(10000, []ExpenseAllocation{
		{CostCenter: "sales", PercentBps: 5000},
		{CostCenter: "support", PercentBps: 5000},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(5000), out[0].AmountCents)
	assert.Equal(t, int64(5000), out[1].AmountCents)
}

func TestReconcileAllocationsScalesToFullPercent(t *testing.T) {
	// 30/30 sums to 6000 bps, should scale to 5000/5000
	out, err := ReconcileAllocations(9000, []ExpenseAllocation{
		{CostCenter: "a", PercentBps: 3000},
		{CostCenter: "b", PercentBps: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bpsSum(out))
	assert.Equal(t, int64(9000), centsSum(out))
	assert.Equal(t, int64(4500), out[0].AmountCents)
}

func TestReconcileAllocationsRemainderGoesToLargestShare(t *testing.T) {
	// Thirds never divide evenly: both the bps remainder and the cents
	// remainder must land on the biggest bucket.
	out, err := ReconcileAllocations(100, []ExpenseAllocation{
		{CostCenter: "a", PercentBps: 1},
		{CostCenter: "b", PercentBps: 1},
		{CostCenter: "c", PercentBps: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bpsSum(out))
	assert.Equal(t, int64(100), centsSum(out))

	largest := out[0]
	for _, a := range out[1:] {
		if a.PercentBps > largest.PercentBps {
			largest = a
		}
	}
	assert.Greater(t, largest.PercentBps, int64(3333))
}

func TestReconcileAllocationsUnevenShares(t *testing.T) {
	out, err := ReconcileAllocations(999, []ExpenseAllocation{
		{CostCenter: "eng", PercentBps: 7000},
		{CostCenter: "ops", PercentBps: 3000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(999), centsSum(out))
	// 69930/10000 truncates to 699; remainder cent lands on eng
	assert.Equal(t, int64(700), out[0].AmountCents)
	assert.Equal(t, int64(299), out[1].AmountCents)
}

func TestReconcileAllocationsRejectsBadInput(t *testing.T) {
	_, err := ReconcileAllocations(-1, []ExpenseAllocation{{PercentBps: 10000}})
	assert.Error(t, err)

	_, err = ReconcileAllocations(100, nil)
	assert.Error(t, err)

	_, err = ReconcileAllocations(100, []ExpenseAllocation{{CostCenter: "a", PercentBps: -5}})
	assert.Error(t, err)

	_, err = ReconcileAllocations(100, []ExpenseAllocation{{CostCenter: "a", PercentBps: 0}})
	assert.Error(t, err)
}

func TestReconcileAllocationsZeroAmount(t *testing.T) {
	out, err := ReconcileAllocations(0, []ExpenseAllocation{
		{CostCenter: "a", PercentBps: 10000},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), centsSum(out))
	assert.Equal(t, int64(10000), out[0].PercentBps)
}
