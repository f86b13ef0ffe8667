package ttol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// MediaType is the content type of an encoded tagged list.
const MediaType = "application/x-haven-ttol"

const (
	tEnd     = 0
	tInt     = 1
	tStr     = 2
	tCoord   = 3
	tUint8   = 4
	tUint16  = 5
	tColor   = 6
	tTtol    = 8
	tInt8    = 9
	tInt16   = 10
	tNil     = 12
	tBytes   = 14
	tFloat32 = 15
	tFloat64 = 16
)

// MaxDepth bounds how deeply lists may nest in a decoded message.
const MaxDepth = 64

// Marshal encodes l. Integers outside the int32 range cannot be represented
// on the wire and cause an error.
func Marshal(l List) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeList(&buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeList(buf *bytes.Buffer, l List) error {
	for _, v := range l {
		if err := encodeValue(buf, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case nil, Nil:
		buf.WriteByte(tNil)
	case Int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("ttol: integer %d overflows int32", int64(v))
		}
		buf.WriteByte(tInt)
		buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(int32(v))))
	case String:
		if bytes.IndexByte([]byte(v), 0) >= 0 {
			return fmt.Errorf("ttol: string contains NUL byte")
		}
		buf.WriteByte(tStr)
		buf.WriteString(string(v))
		buf.WriteByte(0)
	case Bytes:
		buf.WriteByte(tBytes)
		if len(v) < 128 {
			buf.WriteByte(byte(len(v)))
		} else {
			buf.WriteByte(0x80)
			buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(v))))
		}
		buf.Write(v)
	case List:
		buf.WriteByte(tTtol)
		if err := encodeList(buf, v); err != nil {
			return err
		}
		buf.WriteByte(tEnd)
	default:
		return fmt.Errorf("ttol: cannot encode %T", v)
	}
	return nil
}

// Unmarshal decodes a whole message into a list.
func Unmarshal(data []byte) (List, error) {
	d := &decoder{buf: data}
	l, err := d.list(false)
	if err != nil {
		return nil, fmt.Errorf("ttol: at offset %d: %w", d.off, err)
	}
	return l, nil
}

type decoder struct {
	buf   []byte
	off   int
	depth int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.buf) {
		return nil, ErrTruncated
	}
	ret := d.buf[d.off : d.off+n]
	d.off += n
	return ret, nil
}

func (d *decoder) uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) int32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// list reads values until the end of the buffer or, when nested, an END tag.
func (d *decoder) list(nested bool) (List, error) {
	ret := List{}
	for {
		if d.off >= len(d.buf) {
			if nested {
				return nil, ErrTruncated
			}
			return ret, nil
		}
		tag, _ := d.uint8()
		if tag == tEnd {
			return ret, nil
		}
		v, err := d.value(tag)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
}

func (d *decoder) value(tag uint8) (Value, error) {
	switch tag {
	case tInt:
		v, err := d.int32()
		return Int(v), err
	case tStr:
		end := bytes.IndexByte(d.buf[d.off:], 0)
		if end < 0 {
			return nil, ErrTruncated
		}
		s := string(d.buf[d.off : d.off+end])
		d.off += end + 1
		return String(s), nil
	case tCoord:
		x, err := d.int32()
		if err != nil {
			return nil, err
		}
		y, err := d.int32()
		return List{Int(x), Int(y)}, err
	case tUint8:
		v, err := d.uint8()
		return Int(v), err
	case tUint16:
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}
		return Int(binary.LittleEndian.Uint16(b)), nil
	case tColor:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return List{Int(b[0]), Int(b[1]), Int(b[2]), Int(b[3])}, nil
	case tTtol:
		if d.depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		d.depth++
		l, err := d.list(true)
		d.depth--
		return l, err
	case tInt8:
		v, err := d.uint8()
		return Int(int8(v)), err
	case tInt16:
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}
		return Int(int16(binary.LittleEndian.Uint16(b))), nil
	case tNil:
		return Nil{}, nil
	case tBytes:
		n, err := d.uint8()
		if err != nil {
			return nil, err
		}
		size := int(n)
		if n&0x80 != 0 {
			l, err := d.int32()
			if err != nil {
				return nil, err
			}
			size = int(l)
		}
		b, err := d.take(size)
		if err != nil {
			return nil, err
		}
		return Bytes(append([]byte(nil), b...)), nil
	case tFloat32, tFloat64:
		return nil, fmt.Errorf("%w: float (%d)", ErrUnsupportedTag, tag)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTag, tag)
	}
}
