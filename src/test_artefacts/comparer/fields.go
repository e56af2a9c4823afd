package comparer

import (
	"bytes"

	"applicationservice/src/domain/entities"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

func IgnoreFieldsFor[T any](fields ...string) cmp.Option {
	var t T
	return cmpopts.IgnoreFields(t, fields...)
}

// IgnoreWriteStamps ignores what every write bumps on an application.
func IgnoreWriteStamps() cmp.Option {
	return IgnoreFieldsFor[entities.Application]("Version", "UpdatedAt")
}

// UnorderedIDs compares id slices as sets.
func UnorderedIDs() cmp.Option {
	return cmpopts.SortSlices(func(a, b uuid.UUID) bool {
		return bytes.Compare(a[:], b[:]) < 0
	})
}
