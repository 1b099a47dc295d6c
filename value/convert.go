package value

import (
	"strconv"

	"github.com/gravitational/trace"
)

// ErrTypeConversion is returned when a requested read type is incompatible
// with the stored kind, per the coercion table below.
var ErrTypeConversion = trace.BadParameter("value cannot be converted to the requested type")

// AsString applies the read-time coercion table for decoding an Owned as
// text: String passes through; Number is rendered decimal; Bytes is
// decoded as (possibly lossy) UTF-8. Anything else is a TypeConversion
// error, matching the facade's get<String> contract.
func AsString(o Owned) (string, error) {
	switch o.kind {
	case KindString:
		return o.text, nil
	case KindNumber:
		return strconv.FormatInt(o.number, 10), nil
	case KindBytes:
		return string(o.bytes), nil
	default:
		return "", trace.Wrap(ErrTypeConversion, "cannot read %s as String", o.kind)
	}
}

// AsBytes applies the read-time coercion table for decoding an Owned as
// bytes: Bytes passes through; String is its UTF-8 encoding. Number and
// List are not convertible to Bytes.
func AsBytes(o Owned) ([]byte, error) {
	switch o.kind {
	case KindBytes:
		return o.bytes, nil
	case KindString:
		return []byte(o.text), nil
	default:
		return nil, trace.Wrap(ErrTypeConversion, "cannot read %s as Bytes", o.kind)
	}
}

// AsNumber requires the stored kind to already be Number; no implicit
// String/Bytes→Number coercion is defined by the facade's contract.
func AsNumber(o Owned) (int64, error) {
	if o.kind != KindNumber {
		return 0, trace.Wrap(ErrTypeConversion, "cannot read %s as Number", o.kind)
	}
	return o.number, nil
}

// AsList requires the stored kind to already be List; no other kind
// coerces to List.
func AsList(o Owned) ([]Owned, error) {
	if o.kind != KindList {
		return nil, trace.Wrap(ErrTypeConversion, "cannot read %s as List", o.kind)
	}
	return o.list, nil
}
