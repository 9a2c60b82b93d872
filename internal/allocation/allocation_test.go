package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amounts(vals ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name          string
		parent        int64
		siblings      []decimal.Decimal
		candidate     int64
		wantAvailable int64
		wantSiblings  int64
		wantExceeded  bool
	}{
		{
			name:          "overallocation is flagged",
			parent:        1000,
			siblings:      amounts(500, 400),
			candidate:     200,
			wantAvailable: 100,
			wantSiblings:  900,
			wantExceeded:  true,
		},
		{
			name:          "exact fit is not exceeded",
			parent:        1000,
			siblings:      amounts(600),
			candidate:     400,
			wantAvailable: 400,
			wantSiblings:  600,
		},
		{
			name:          "no siblings",
			parent:        1000,
			candidate:     250,
			wantAvailable: 1000,
		},
		{
			name:          "siblings already exceed parent",
			parent:        100,
			siblings:      amounts(150),
			candidate:     0,
			wantAvailable: -50,
			wantSiblings:  150,
			wantExceeded:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Check(decimal.NewFromInt(tt.parent), tt.siblings, decimal.NewFromInt(tt.candidate))

			assert.True(t, r.Available.Equal(decimal.NewFromInt(tt.wantAvailable)), "available %s", r.Available)
			assert.True(t, r.SiblingTotal.Equal(decimal.NewFromInt(tt.wantSiblings)), "siblings %s", r.SiblingTotal)
			assert.Equal(t, tt.wantExceeded, r.IsExceeded)
			assert.Equal(t, len(tt.siblings), r.SiblingCount)
		})
	}
}

func TestCheck_IsAdvisory(t *testing.T) {
	var r Result
	assert.NotPanics(t, func() {
		r = Check(decimal.NewFromInt(1000), amounts(900), decimal.NewFromInt(200))
	})

	assert.True(t, r.IsExceeded)
	assert.True(t, r.Available.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.Remaining().Equal(decimal.NewFromInt(-100)))
}
