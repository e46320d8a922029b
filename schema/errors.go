package schema

import (
	"fmt"
	"reflect"

	"github.com/ironwood-labs/dynpb/xerr"
)

func newFieldNumberError(t reflect.Type, number int32, reason string) error {
	return fmt.Errorf("schema: %s (type %s, field %d): %w", reason, t, number, xerr.ErrFieldNumberConflict)
}
