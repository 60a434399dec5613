package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/cloth_shop/internal/domain"
)

func TestProductService_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.catalog.CreateProduct(ctx, &domain.CreateProductRequest{
		Name:        "  Linen Shirt ",
		Description: "breathable",
		Price:       decimal.RequireFromString("39.90"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", p.Name)
	assert.Equal(t, domain.ProductStatusActive, p.Status)

	got, err := env.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("39.9")))

	_, err = env.catalog.GetProduct(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProductService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  domain.CreateProductRequest
	}{
		{"blank name", domain.CreateProductRequest{Name: " ", Price: decimal.NewFromInt(1)}},
		{"zero price", domain.CreateProductRequest{Name: "x", Price: decimal.Zero}},
		{"three decimals", domain.CreateProductRequest{Name: "x", Price: decimal.RequireFromString("1.005")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.CreateProduct(context.Background(), &tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestProductService_UpdatePriceAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.seedProduct(t, "Jeans", "59.00")

	p, err := env.catalog.UpdatePrice(ctx, id, &domain.UpdatePriceRequest{Price: decimal.RequireFromString("49.50")})
	require.NoError(t, err)
	assert.Equal(t, "49.50", p.Price.StringFixed(2))

	_, err = env.catalog.UpdatePrice(ctx, id, &domain.UpdatePriceRequest{Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, env.catalog.DeleteProduct(ctx, id))
	_, err = env.catalog.GetProduct(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, env.catalog.DeleteProduct(ctx, id), domain.ErrNotFound)
}
