package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "commerce-backend/pkg/errors"
)

func TestBatchSelect(t *testing.T) {
	t.Run("builds WHERE IN with positional placeholders", func(t *testing.T) {
		q := BatchSelect("products", []any{1, 2, 3}, "id", "name")
		assert.Equal(t, "SELECT id, name FROM products WHERE id IN ($1, $2, $3)", q.Query)
		assert.Equal(t, []any{1, 2, 3}, q.Params)
	})

	t.Run("defaults to all columns", func(t *testing.T) {
		q := BatchSelect("vendors", []any{9})
		assert.Equal(t, "SELECT * FROM vendors WHERE id IN ($1)", q.Query)
	})

	t.Run("empty ids match nothing", func(t *testing.T) {
		q := BatchSelect("products", nil)
		assert.Equal(t, "SELECT * FROM products WHERE 1 = 0", q.Query)
		assert.Empty(t, q.Params)
	})
}

func TestRelatedDataQuery(t *testing.T) {
	t.Run("aliases relations in order and prefixes columns", func(t *testing.T) {
		q := RelatedDataQuery("products", []any{1, 2}, []Relation{
			{Table: "product_images", ForeignKey: "product_id", Columns: []string{"url"}},
			{Table: "product_pricing", ForeignKey: "product_id", Columns: []string{"base_price", "vendor_id"}},
		})

		assert.Equal(t,
			"SELECT products.*, r0.url AS product_images_url, "+
				"r1.base_price AS product_pricing_base_price, r1.vendor_id AS product_pricing_vendor_id "+
				"FROM products "+
				"LEFT JOIN product_images r0 ON r0.product_id = products.id "+
				"LEFT JOIN product_pricing r1 ON r1.product_id = products.id "+
				"WHERE products.id IN ($1, $2)",
			q.Query)
		assert.Equal(t, []any{1, 2}, q.Params)
	})

	t.Run("empty ids match nothing", func(t *testing.T) {
		q := RelatedDataQuery("products", nil, nil)
		assert.Contains(t, q.Query, "WHERE 1 = 0")
	})
}

func TestBatchCount(t *testing.T) {
	db := &fakeDB{rows: map[string][]Row{
		"FROM products": {{"count": int64(42)}},
		"FROM orders":   {{"count": int64(7)}},
	}, errs: map[string]error{
		"FROM broken": assert.AnError,
	}}
	b := NewBatcher(db, zap.NewNop())

	counts := BatchCount(context.Background(), b, []CountSpec{
		{ID: "products", Table: "products"},
		{ID: "pending", Table: "orders", Condition: "status = $1", Params: []any{"pending"}},
		{ID: "bad", Table: "broken"},
	})

	assert.Equal(t, int64(42), counts["products"])
	assert.Equal(t, int64(7), counts["pending"])
	assert.Equal(t, int64(0), counts["bad"])
	assert.Contains(t, db.executed[1], "WHERE status = $1")
}

func TestBatchAggregates(t *testing.T) {
	t.Run("returns id-keyed values", func(t *testing.T) {
		db := &fakeDB{rows: map[string][]Row{
			"SUM(total)":  {{"value": 1234.5}},
			"AVG(rating)": {{"value": 4.2}},
		}}
		b := NewBatcher(db, zap.NewNop())

		vals, err := BatchAggregates(context.Background(), b, []AggregateSpec{
			{ID: "revenue", Table: "orders", Op: "SUM", Column: "total"},
			{ID: "rating", Table: "reviews", Op: "avg", Column: "rating"},
		})
		require.NoError(t, err)
		assert.InDelta(t, 1234.5, vals["revenue"], 0.001)
		assert.InDelta(t, 4.2, vals["rating"], 0.001)
	})

	t.Run("rejects unknown operations", func(t *testing.T) {
		b := NewBatcher(&fakeDB{}, zap.NewNop())
		_, err := BatchAggregates(context.Background(), b, []AggregateSpec{
			{ID: "x", Table: "orders", Op: "MEDIAN", Column: "total"},
		})
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})

	t.Run("failed aggregates report zero", func(t *testing.T) {
		db := &fakeDB{errs: map[string]error{"FROM orders": assert.AnError}}
		b := NewBatcher(db, zap.NewNop())

		vals, err := BatchAggregates(context.Background(), b, []AggregateSpec{
			{ID: "revenue", Table: "orders", Op: "SUM", Column: "total"},
		})
		require.NoError(t, err)
		assert.Zero(t, vals["revenue"])
	})
}

func TestUnionQuery(t *testing.T) {
	t.Run("renumbers placeholders across branches", func(t *testing.T) {
		q := UnionQuery([]SQLQuery{
			{Query: "SELECT id, name FROM products WHERE category_id = $1", Params: []any{5}},
			{Query: "SELECT id, name FROM bundles WHERE category_id = $1 AND active = $2", Params: []any{5, true}},
		}, "", 0)

		assert.Equal(t,
			"SELECT id, name FROM products WHERE category_id = $1 "+
				"UNION ALL "+
				"SELECT id, name FROM bundles WHERE category_id = $2 AND active = $3",
			q.Query)
		assert.Equal(t, []any{5, 5, true}, q.Params)
	})

	t.Run("wraps for order by and limit", func(t *testing.T) {
		q := UnionQuery([]SQLQuery{
			{Query: "SELECT id FROM a"},
			{Query: "SELECT id FROM b"},
		}, "id DESC", 10)

		assert.Equal(t,
			"SELECT * FROM (SELECT id FROM a UNION ALL SELECT id FROM b) AS combined "+
				"ORDER BY id DESC LIMIT 10",
			q.Query)
	})

	t.Run("empty input yields empty query", func(t *testing.T) {
		q := UnionQuery(nil, "id", 5)
		assert.Empty(t, q.Query)
	})
}

func TestBatchUpdate(t *testing.T) {
	t.Run("groups rows by changed column set", func(t *testing.T) {
		queries := BatchUpdate("products", []UpdateSpec{
			{ID: 1, Changes: map[string]any{"price": 10}},
			{ID: 2, Changes: map[string]any{"price": 20}},
			{ID: 3, Changes: map[string]any{"name": "Sheer Blind", "price": 30}},
		})

		require.Len(t, queries, 2)

		// Groups come out in sorted key order: "name,price" then "price".
		assert.Equal(t,
			"UPDATE products SET "+
				"name = CASE id WHEN $1 THEN $2 END, "+
				"price = CASE id WHEN $3 THEN $4 END "+
				"WHERE id IN ($5)",
			queries[0].Query)
		assert.Equal(t, []any{3, "Sheer Blind", 3, 30, 3}, queries[0].Params)

		assert.Equal(t,
			"UPDATE products SET "+
				"price = CASE id WHEN $1 THEN $2 WHEN $3 THEN $4 END "+
				"WHERE id IN ($5, $6)",
			queries[1].Query)
		assert.Equal(t, []any{1, 10, 2, 20, 1, 2}, queries[1].Params)
	})

	t.Run("applies each row's own value", func(t *testing.T) {
		db := &fakeDB{}
		b := NewBatcher(db, zap.NewNop())

		for _, q := range BatchUpdate("products", []UpdateSpec{
			{ID: 1, Changes: map[string]any{"stock": 5}},
			{ID: 2, Changes: map[string]any{"stock": 9}},
		}) {
			b.Add(q.Query, q.Query, q.Params...)
		}
		res := b.ExecuteInTransaction(context.Background())
		require.NoError(t, res.Err)
		assert.True(t, res.Success)
		require.Len(t, db.txs, 1)
		assert.True(t, db.txs[0].committed)
	})

	t.Run("skips rows with no changes", func(t *testing.T) {
		queries := BatchUpdate("products", []UpdateSpec{
			{ID: 1, Changes: nil},
			{ID: 2, Changes: map[string]any{}},
		})
		assert.Empty(t, queries)
	})

	t.Run("empty input yields nothing", func(t *testing.T) {
		assert.Empty(t, BatchUpdate("products", nil))
	})
}
