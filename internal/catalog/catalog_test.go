package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *Catalog {
	return New(map[string]Service{
		"haircut": {
			Labels:       map[string]string{"ru": "Стрижка — 80 000"},
			ClientLabels: map[string]string{"ru": "Стрижка"},
			Minutes:      30,
			PriceUZS:     80000,
		},
		"beard": {
			Labels:   map[string]string{"ru": "Борода — 50 000"},
			Minutes:  15,
			PriceUZS: 50000,
		},
	})
}

func TestDuration_RoundsUpToWholeSlots(t *testing.T) {
	c := testCatalog()

	mins, slots := c.Duration([]string{"haircut", "beard"})
	assert.Equal(t, 45, mins)
	assert.Equal(t, 2, slots)

	mins, slots = c.Duration([]string{"haircut"})
	assert.Equal(t, 30, mins)
	assert.Equal(t, 1, slots)
}

func TestDuration_EmptySelectionStillOneSlot(t *testing.T) {
	_, slots := testCatalog().Duration(nil)
	assert.Equal(t, 1, slots)
}

func TestClientLabel_FallsBack(t *testing.T) {
	c := testCatalog()

	assert.Equal(t, "Стрижка", c.ClientLabel("haircut", "ru"))
	// No client label defined, provider label is used.
	assert.Equal(t, "Борода — 50 000", c.ClientLabel("beard", "ru"))
	// Unknown service degrades to the id.
	assert.Equal(t, "nails", c.ClientLabel("nails", "ru"))
}

func TestIDs_SortedAndStable(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, []string{"beard", "haircut"}, c.IDs())
	assert.True(t, c.Has("beard"))
	assert.False(t, c.Has("nails"))
}

func TestTotalPrice(t *testing.T) {
	assert.Equal(t, 130000, testCatalog().TotalPrice([]string{"haircut", "beard"}))
}
