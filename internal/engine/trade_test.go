package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillHistory(t *testing.T) {
	h := NewFillHistory(3)
	for i, id := range []string{"a", "b", "c", "d"} {
		market := "m1"
		if i == 1 {
			market = "m2"
		}
		h.Add(&FillRecord{ID: id, MarketID: market})
	}

	ids := func(fills []*FillRecord) []string {
		var out []string
		for _, f := range fills {
			out = append(out, f.ID)
		}
		return out
	}

	// "a" was trimmed.
	assert.Equal(t, []string{"b", "c", "d"}, ids(h.Recent("", 10)))
	assert.Equal(t, []string{"c", "d"}, ids(h.Recent("m1", 10)))
	assert.Equal(t, []string{"d"}, ids(h.Recent("m1", 1)))
	assert.Empty(t, h.Recent("m3", 10))
}
