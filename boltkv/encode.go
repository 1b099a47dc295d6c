package boltkv

import (
	"encoding/binary"

	"github.com/gravitational/trace"

	"github.com/tempuscache/expirekv/value"
)

// Kind tags for the on-disk value encoding, per spec §4.3.
const (
	tagNumber byte = 0
	tagString byte = 1
	tagBytes  byte = 2
	tagList   byte = 3
)

// encodeValue serializes v into the little-endian layout spec §4.3
// describes: a 1-byte kind tag followed by the kind-specific payload.
// Each List element is itself laid out as a 1-byte kind tag, an 8-byte
// payload length, then the payload, per spec §4.3/§6. Lists of lists are
// rejected (value.List already refuses to construct one, so this is a
// defensive doesn't-happen check).
func encodeValue(v value.Owned) ([]byte, error) {
	switch v.Kind() {
	case value.KindNumber:
		n, _ := v.Number()
		buf := make([]byte, 9)
		buf[0] = tagNumber
		binary.LittleEndian.PutUint64(buf[1:], uint64(n))
		return buf, nil
	case value.KindString:
		s, _ := v.Text()
		buf := make([]byte, 1+len(s))
		buf[0] = tagString
		copy(buf[1:], s)
		return buf, nil
	case value.KindBytes:
		raw, _ := v.Raw()
		buf := make([]byte, 1+len(raw))
		buf[0] = tagBytes
		copy(buf[1:], raw)
		return buf, nil
	case value.KindList:
		items, _ := v.Items()
		buf := []byte{tagList}
		for _, item := range items {
			if item.Kind() == value.KindList {
				return nil, trace.Wrap(value.ErrNestedList)
			}
			enc, err := encodeValue(item)
			if err != nil {
				return nil, trace.Wrap(err)
			}
			kind, payload := enc[0], enc[1:]
			length := make([]byte, 8)
			binary.LittleEndian.PutUint64(length, uint64(len(payload)))
			buf = append(buf, kind)
			buf = append(buf, length...)
			buf = append(buf, payload...)
		}
		return buf, nil
	default:
		return nil, trace.BadParameter("unknown value kind %d", v.Kind())
	}
}

// decodeValue parses the byte layout encodeValue produces.
func decodeValue(buf []byte) (value.Owned, error) {
	if len(buf) == 0 {
		return value.Owned{}, trace.BadParameter("empty encoded value")
	}
	switch buf[0] {
	case tagNumber:
		if len(buf) < 9 {
			return value.Owned{}, trace.BadParameter("truncated Number encoding")
		}
		n := int64(binary.LittleEndian.Uint64(buf[1:9]))
		return value.OwnedNumber(n), nil
	case tagString:
		return value.OwnedString(string(buf[1:])), nil
	case tagBytes:
		return value.OwnedBytes(buf[1:]), nil
	case tagList:
		rest := buf[1:]
		var items []value.Owned
		for len(rest) > 0 {
			if len(rest) < 9 {
				return value.Owned{}, trace.BadParameter("truncated List element header")
			}
			kind := rest[0]
			length := binary.LittleEndian.Uint64(rest[1:9])
			rest = rest[9:]
			if uint64(len(rest)) < length {
				return value.Owned{}, trace.BadParameter("truncated List element payload")
			}
			payload := rest[:length]
			rest = rest[length:]
			elemBuf := append([]byte{kind}, payload...)
			elem, err := decodeValue(elemBuf)
			if err != nil {
				return value.Owned{}, trace.Wrap(err)
			}
			items = append(items, elem)
		}
		list, err := value.OwnedList(items...)
		if err != nil {
			return value.Owned{}, trace.Wrap(err)
		}
		return list, nil
	default:
		return value.Owned{}, trace.BadParameter("unknown kind tag %d", buf[0])
	}
}
