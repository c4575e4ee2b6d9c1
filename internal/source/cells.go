package source

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// cellString renders a database value as a table cell. NULL is empty and
// times are RFC3339 in UTC.
func cellString(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case [16]byte:
		// pgx decodes uuid columns to raw bytes.
		return uuid.UUID(x).String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case fmt.Stringer:
		return x.String()
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil || dv == nil {
			return ""
		}
		return cellString(dv)
	}
	if rv.Kind() == reflect.Pointer {
		return cellString(rv.Elem().Interface())
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
