package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	tablePrefix = "db_"
	slotPrefix  = "c_"
)

// PhysicalTableName derives the storage table for a database from its id.
func PhysicalTableName(databaseID string) string {
	return tablePrefix + encodeIdent(databaseID)
}

// SlotName derives the physical column for a logical column from its id.
// It never depends on the column name, so renames leave storage untouched.
func SlotName(columnID string) string {
	return slotPrefix + encodeIdent(columnID)
}

// IsSlot reports whether a physical column name is a column slot.
func IsSlot(name string) bool {
	return strings.HasPrefix(name, slotPrefix)
}

// ColumnIDFromSlot inverts SlotName.
func ColumnIDFromSlot(slot string) (string, error) {
	if !IsSlot(slot) {
		return "", fmt.Errorf("not a column slot: %q", slot)
	}
	return decodeIdent(strings.TrimPrefix(slot, slotPrefix))
}

// encodeIdent keeps [a-z0-9] and escapes every other byte as _xx so the
// result is a safe SQL identifier and the mapping stays injective.
func encodeIdent(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "_%02x", c)
	}
	return b.String()
}

func decodeIdent(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			b.WriteByte(s[i])
			continue
		}
		if i+3 > len(s) {
			return "", fmt.Errorf("truncated escape in %q", s)
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("bad escape in %q: %w", s, err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}
