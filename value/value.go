// Package value implements the typed data unit stored against every key:
// a tagged union of Number, String, Bytes or a flat List of those three.
//
// Two flavors exist for the same tag set. Value borrows its payload from
// the caller and is meant for the write path, where copying is wasteful.
// Owned copies (or is handed) its payload and is safe to retain past the
// call that produced it — every read path returns an Owned.
package value

import (
	"github.com/gravitational/trace"
)

// Kind identifies which of the four payload shapes a Value/Owned carries.
type Kind uint8

const (
	// KindNumber marks a signed 64-bit integer payload.
	KindNumber Kind = iota
	// KindString marks a UTF-8 text payload.
	KindString
	// KindBytes marks an arbitrary byte-sequence payload.
	KindBytes
	// KindList marks an ordered sequence of Number/String/Bytes values.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindList:
		return "List"
	default:
		return "Unknown"
	}
}

// ErrNestedList is returned when a List is constructed with a List element.
// The data model allows exactly one level of nesting: a list of scalars.
var ErrNestedList = trace.BadParameter("list values cannot contain nested lists")

// Value is a borrowed, read-only view over caller-owned data. It is built
// from slices/strings the caller still owns and must not be retained past
// the call it was passed to; use ToOwned to keep it.
type Value struct {
	kind   Kind
	number int64
	text   string
	bytes  []byte
	list   []Value
}

// Number constructs a borrowed Number value.
func Number(n int64) Value { return Value{kind: KindNumber, number: n} }

// String constructs a borrowed String value over s.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bytes constructs a borrowed Bytes value over b. b is not copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// List constructs a borrowed List value over elems. Every element must be
// Number, String or Bytes; a List element is rejected.
func List(elems ...Value) (Value, error) {
	for _, e := range elems {
		if e.kind == KindList {
			return Value{}, trace.Wrap(ErrNestedList)
		}
	}
	return Value{kind: KindList, list: elems}, nil
}

// Kind reports the value's tag.
func (v Value) Kind() Kind { return v.kind }

// ToOwned copies the borrowed payload into an independently-owned Owned.
func (v Value) ToOwned() Owned {
	switch v.kind {
	case KindNumber:
		return Owned{kind: KindNumber, number: v.number}
	case KindString:
		return Owned{kind: KindString, text: v.text}
	case KindBytes:
		b := make([]byte, len(v.bytes))
		copy(b, v.bytes)
		return Owned{kind: KindBytes, bytes: b}
	case KindList:
		items := make([]Owned, len(v.list))
		for i, e := range v.list {
			items[i] = e.ToOwned()
		}
		return Owned{kind: KindList, list: items}
	default:
		return Owned{}
	}
}

// Owned is an independently-owned value, safe to retain indefinitely. It is
// the shape returned by every read operation.
type Owned struct {
	kind   Kind
	number int64
	text   string
	bytes  []byte
	list   []Owned
}

// OwnedNumber constructs an owned Number value.
func OwnedNumber(n int64) Owned { return Owned{kind: KindNumber, number: n} }

// OwnedString constructs an owned String value.
func OwnedString(s string) Owned { return Owned{kind: KindString, text: s} }

// OwnedBytes constructs an owned Bytes value, copying b.
func OwnedBytes(b []byte) Owned {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Owned{kind: KindBytes, bytes: cp}
}

// OwnedList constructs an owned List value. A List element is rejected.
func OwnedList(elems ...Owned) (Owned, error) {
	for _, e := range elems {
		if e.kind == KindList {
			return Owned{}, trace.Wrap(ErrNestedList)
		}
	}
	return Owned{kind: KindList, list: elems}, nil
}

// Kind reports the value's tag.
func (o Owned) Kind() Kind { return o.kind }

// Borrow produces a Value view over o's payload without copying.
func (o Owned) Borrow() Value {
	switch o.kind {
	case KindNumber:
		return Value{kind: KindNumber, number: o.number}
	case KindString:
		return Value{kind: KindString, text: o.text}
	case KindBytes:
		return Value{kind: KindBytes, bytes: o.bytes}
	case KindList:
		items := make([]Value, len(o.list))
		for i, e := range o.list {
			items[i] = e.Borrow()
		}
		return Value{kind: KindList, list: items}
	default:
		return Value{}
	}
}

// Number returns the underlying int64 if Kind is Number.
func (o Owned) Number() (int64, bool) {
	if o.kind != KindNumber {
		return 0, false
	}
	return o.number, true
}

// Text returns the underlying string if Kind is String.
func (o Owned) Text() (string, bool) {
	if o.kind != KindString {
		return "", false
	}
	return o.text, true
}

// Raw returns the underlying byte slice if Kind is Bytes.
func (o Owned) Raw() ([]byte, bool) {
	if o.kind != KindBytes {
		return nil, false
	}
	return o.bytes, true
}

// Items returns the underlying element slice if Kind is List.
func (o Owned) Items() ([]Owned, bool) {
	if o.kind != KindList {
		return nil, false
	}
	return o.list, true
}

func (v Value) Number() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.number, true
}

func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

func (v Value) Raw() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.bytes, true
}

func (v Value) Items() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}
