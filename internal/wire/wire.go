// Package wire encodes and decodes domain values as JSON with jx.
package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// FieldErr annotates a field decoding error with its key. A nil err stays
// nil.
func FieldErr(key string, err error) error {
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

// Money writes d as a JSON number.
func Money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// Money2 writes d rounded to two places as a JSON number.
func Money2(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// DecodeMoney reads a decimal written either as a number or a string.
func DecodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

// DecodeInt reads an integer written either as a number or a numeric string.
func DecodeInt(d *jx.Decoder) (int, error) {
	v, err := DecodeMoney(d)
	if err != nil {
		return 0, err
	}
	if !v.IsInteger() {
		return 0, errors.Errorf("expected integer, got %s", v)
	}
	return int(v.IntPart()), nil
}

// Time writes t in RFC 3339 with nanoseconds.
func Time(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// DecodeTime reads an RFC 3339 timestamp.
func DecodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Strings writes a string array, encoding nil as [].
func Strings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

// DecodeStrings reads a string array. null yields nil.
func DecodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// DecodeOptStr reads a string, treating null as empty.
func DecodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
