package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var le = binary.LittleEndian

var (
	ErrSchemaMismatch  = errors.New("rowcodec: schema/values mismatch")
	ErrBadBuffer       = errors.New("rowcodec: buffer underflow/overflow")
	ErrVarTooLong      = errors.New("rowcodec: variable length exceeds u16")
	ErrUnsupportedType = errors.New("rowcodec: unsupported type")

	ErrSchemaMismatchNotAllowNull = fmt.Errorf("%w: column is not nullable", ErrSchemaMismatch)
	ErrSchemaMismatchNotInt32     = fmt.Errorf("%w: expected int32", ErrSchemaMismatch)
	ErrSchemaMismatchNotInt64     = fmt.Errorf("%w: expected int64", ErrSchemaMismatch)
	ErrSchemaMismatchNotUint64    = fmt.Errorf("%w: expected uint64", ErrSchemaMismatch)
	ErrSchemaMismatchNotBool      = fmt.Errorf("%w: expected bool", ErrSchemaMismatch)
	ErrSchemaMismatchNotFloat64   = fmt.Errorf("%w: expected float64", ErrSchemaMismatch)
	ErrSchemaMismatchNotText      = fmt.Errorf("%w: expected string", ErrSchemaMismatch)
	ErrSchemaMismatchNotBytes     = fmt.Errorf("%w: expected []byte", ErrSchemaMismatch)
)

// EncodeRow serializes values in schema column order.
// Format:
// [nullmap: ceil(N/8) bytes, bit=1 => NULL]  |  [field0 data?] [field1 data?] ...
// Varlen types (TEXT/BYTES): u16 length (LE) + data
func EncodeRow(s Schema, values []any) ([]byte, error) {
	nc := s.NumCols()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}

	nbBytes := (nc + 7) / 8
	out := make([]byte, nbBytes)

	for i, col := range s.Cols {
		v := values[i]
		if v == nil {
			if !col.Nullable {
				return nil, ErrSchemaMismatchNotAllowNull
			}
			out[i/8] |= 1 << (uint(i) & 7)
			continue
		}

		switch col.Type {
		case ColInt32:
			x, ok := asInt32(v)
			if !ok {
				return nil, ErrSchemaMismatchNotInt32
			}
			out = le.AppendUint32(out, uint32(x))

		case ColInt64:
			x, ok := AsInt64(v)
			if !ok {
				return nil, ErrSchemaMismatchNotInt64
			}
			out = le.AppendUint64(out, uint64(x))

		case ColUint64:
			x, ok := AsUint64(v)
			if !ok {
				return nil, ErrSchemaMismatchNotUint64
			}
			out = le.AppendUint64(out, x)

		case ColBool:
			x, ok := v.(bool)
			if !ok {
				return nil, ErrSchemaMismatchNotBool
			}
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		case ColFloat64:
			x, ok := AsFloat64(v)
			if !ok {
				return nil, ErrSchemaMismatchNotFloat64
			}
			out = le.AppendUint64(out, math.Float64bits(x))

		case ColText:
			str, ok := v.(string)
			if !ok {
				return nil, ErrSchemaMismatchNotText
			}
			if len(str) > math.MaxUint16 {
				return nil, ErrVarTooLong
			}
			out = le.AppendUint16(out, uint16(len(str)))
			out = append(out, str...)

		case ColBytes:
			bs, ok := v.([]byte)
			if !ok {
				return nil, ErrSchemaMismatchNotBytes
			}
			if len(bs) > math.MaxUint16 {
				return nil, ErrVarTooLong
			}
			out = le.AppendUint16(out, uint16(len(bs)))
			out = append(out, bs...)

		default:
			return nil, ErrUnsupportedType
		}
	}

	return out, nil
}

// DecodeRow is the inverse of EncodeRow. NULL fields decode to nil.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	nc := s.NumCols()
	nbBytes := (nc + 7) / 8
	if len(buf) < nbBytes {
		return nil, ErrBadBuffer
	}
	nullmap := buf[:nbBytes]
	i := nbBytes

	out := make([]any, nc)
	for colIdx, col := range s.Cols {
		if (nullmap[colIdx/8]>>(uint(colIdx)&7))&1 == 1 {
			out[colIdx] = nil
			continue
		}

		switch col.Type {
		case ColInt32:
			if i+4 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = int32(le.Uint32(buf[i : i+4]))
			i += 4

		case ColInt64:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = int64(le.Uint64(buf[i : i+8]))
			i += 8

		case ColUint64:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = le.Uint64(buf[i : i+8])
			i += 8

		case ColBool:
			if i+1 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = buf[i] != 0
			i++

		case ColFloat64:
			if i+8 > len(buf) {
				return nil, ErrBadBuffer
			}
			out[colIdx] = math.Float64frombits(le.Uint64(buf[i : i+8]))
			i += 8

		case ColText, ColBytes:
			if i+2 > len(buf) {
				return nil, ErrBadBuffer
			}
			l := int(le.Uint16(buf[i : i+2]))
			i += 2
			if i+l > len(buf) {
				return nil, ErrBadBuffer
			}
			if col.Type == ColText {
				out[colIdx] = string(buf[i : i+l])
			} else {
				// copy so callers never alias the stored row
				cp := make([]byte, l)
				copy(cp, buf[i:i+l])
				out[colIdx] = cp
			}
			i += l

		default:
			return nil, ErrUnsupportedType
		}
	}

	return out, nil
}

// ---- numeric coercion shared by the codec and the executor ----

func asInt32(v any) (int32, bool) {
	x, ok := AsInt64(v)
	if !ok || x < math.MinInt32 || x > math.MaxInt32 {
		return 0, false
	}
	return int32(x), true
}

// AsInt64 accepts any Go integer that fits in int64.
func AsInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// AsUint64 accepts any non-negative Go integer.
func AsUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int32:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	}
	return 0, false
}

// AsFloat64 accepts floats and integer literals.
func AsFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
