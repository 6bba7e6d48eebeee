package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotName_RoundTrip(t *testing.T) {
	for _, id := range []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"status",
		"Mixed_Case id",
		"a_b",
	} {
		slot := SlotName(id)
		assert.Regexp(t, `^c_[a-z0-9_]+$`, slot)

		back, err := ColumnIDFromSlot(slot)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
}

func TestSlotName_Injective(t *testing.T) {
	assert.NotEqual(t, SlotName("a-b"), SlotName("ab"))
	assert.NotEqual(t, SlotName("A"), SlotName("a"))
	assert.NotEqual(t, SlotName("a_2d"), SlotName("a-"))
}

func TestPhysicalTableName_Deterministic(t *testing.T) {
	assert.Equal(t, PhysicalTableName("x-1"), PhysicalTableName("x-1"))
	assert.Equal(t, "db_x_2d1", PhysicalTableName("x-1"))
}

func TestColumnIDFromSlot_Rejects(t *testing.T) {
	_, err := ColumnIDFromSlot("row_order")
	assert.Error(t, err)

	_, err = ColumnIDFromSlot("c_ab_2")
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("row %s", "r1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, KindNotFound, KindOf(err))

	raw := errors.New("disk full")
	wrapped := Backing("insert rows", raw)
	assert.Equal(t, KindBackingStore, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, raw)

	// Typed errors are not re-wrapped.
	v := Validation("bad")
	assert.Same(t, v, Backing("op", v))
}
