package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/cloth_shop/internal/domain"
)

type stubLister []int64

func (s stubLister) ProductIDsWithVariants(context.Context) ([]int64, error) { return s, nil }

type stubReconciler map[int64][]*domain.VariantDrift

func (s stubReconciler) Reconcile(_ context.Context, productID *int64) ([]*domain.VariantDrift, error) {
	if *productID == 99 {
		return nil, errors.New("replica unavailable")
	}
	return s[*productID], nil
}

func drift(pid int64, color string, qty, sum int) *domain.VariantDrift {
	return &domain.VariantDrift{
		VariantKey: domain.VariantKey{ProductID: pid, Color: color, Size: "M"},
		Quantity:   qty,
		LedgerSum:  sum,
		Drift:      qty - sum,
	}
}

func TestReconcileAll(t *testing.T) {
	r := stubReconciler{
		2: {drift(2, "red", 5, 3)},
		1: {drift(1, "blue", 0, 2), drift(1, "black", 4, 1)},
	}

	drifts, err := reconcileAll(context.Background(), r, stubLister{1, 2, 3}, 2)
	require.NoError(t, err)
	require.Len(t, drifts, 3)
	assert.Equal(t, "1/black/M", drifts[0].VariantKey.String())
	assert.Equal(t, "1/blue/M", drifts[1].VariantKey.String())
	assert.Equal(t, "2/red/M", drifts[2].VariantKey.String())
}

func TestReconcileAll_Error(t *testing.T) {
	_, err := reconcileAll(context.Background(), stubReconciler{}, stubLister{1, 99}, 0)
	assert.ErrorContains(t, err, "product 99")
}

func TestPrintDrifts(t *testing.T) {
	var buf bytes.Buffer
	printDrifts(&buf, []*domain.VariantDrift{drift(1, "red", 5, 3)})

	out := buf.String()
	assert.Contains(t, out, "VARIANT")
	assert.Contains(t, out, "1/red/M")
	assert.Contains(t, out, "+2")
}
