package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleRounding(t *testing.T) {
	// 3 * 1.5 = 4.5 -> floor 4, ceil 5
	f := int64(FactorOne + FactorOne/2)
	assert.Equal(t, int64(4), ScaleFloor(3, f))
	assert.Equal(t, int64(5), ScaleCeil(3, f))

	// exact products do not round
	assert.Equal(t, int64(6), ScaleFloor(4, f))
	assert.Equal(t, int64(6), ScaleCeil(4, f))
}

func TestUnscaleSupportsCeilConsumption(t *testing.T) {
	// Whatever Unscale says a stock can support must never consume more than the stock.
	for _, factor := range []int64{1, 77, FactorOne, 3*FactorOne + 5} {
		for q := int64(0); q < 2000; q += 13 {
			p := Unscale(q, factor)
			assert.LessOrEqual(t, ScaleCeil(p, factor), q, "factor=%d q=%d", factor, q)
		}
	}
}

func TestMinShipment(t *testing.T) {
	b := NewBuffer("Coal", Units(1000), FactorOne)
	assert.Equal(t, Units(10), b.MinShipment)

	small := NewBuffer("Coal", Units(8), FactorOne)
	assert.Equal(t, Units(2), small.MinShipment)

	tiny := NewBuffer("Coal", Units(1), FactorOne)
	assert.Equal(t, Units(1), tiny.MinShipment)
}

func TestRollMonthShiftsHistory(t *testing.T) {
	b := NewBuffer("Coal", Units(100), FactorOne)
	b.Book(StatIn, 7)
	b.Quantity = Units(10)
	b.AccumulateStorage(100)
	b.RollMonth()

	assert.Equal(t, int64(7), b.Stat(1, StatIn))
	assert.Equal(t, Units(10), b.Stat(1, StatStorage))
	assert.Equal(t, int64(0), b.Stat(0, StatIn))
	assert.Equal(t, int64(0), b.Stat(MaxMonths, StatIn))
}

func TestClampRepairsOldSaves(t *testing.T) {
	b := NewBuffer("Coal", Units(100), FactorOne)
	b.Quantity = -5
	assert.True(t, b.Clamp())
	assert.Equal(t, int64(0), b.Quantity)

	b.Quantity = Units(120)
	assert.True(t, b.Clamp())
	assert.Equal(t, Units(100), b.Quantity)

	assert.False(t, b.Clamp())
}

func TestGoodsTable(t *testing.T) {
	tbl := NewTable()
	assert.True(t, tbl.Has(GoodsPassengers))
	assert.NoError(t, tbl.Add(Goods{ID: "Coal", Weight: 1000}))
	assert.Error(t, tbl.Add(Goods{}))
	assert.Equal(t, 1000, tbl.Get("Coal").Weight)
	assert.True(t, GoodsID("Coal").IsFreight())
	assert.False(t, GoodsMail.IsFreight())
}
