package scale

import (
	"reflect"
	"testing"
)

func TestEncodeTuple(t *testing.T) {
	input1 := []byte{0x01}
	input2 := []byte{0x02}
	expected := []byte{0x01, 0x02}
	result := EncodeTuple(input1, input2)
	if !reflect.DeepEqual(expected, result) {
		t.Errorf("EncodeTuple(%v, %v) = %v, want %v", input1, input2, result, expected)
	}
}

func TestEncodeInteger(t *testing.T) {
	expected := []byte{0x02, 0x01, 0x00}
	result := EncodeInteger(258, 3)
	if !reflect.DeepEqual(expected, result) {
		t.Errorf("EncodeInteger(258, 3) = %v, want %v", result, expected)
	}
}

func TestEncodeGeneralInteger(t *testing.T) {
	cases := map[uint64][]byte{
		0:     {0x00},
		127:   {0x7f},
		128:   {0x80, 0x80},
		300:   {0x81, 0x2c},
		16384: {0xc0, 0x00, 0x40},
	}
	for input, expected := range cases {
		result := EncodeGeneralInteger(input)
		if !reflect.DeepEqual(expected, result) {
			t.Errorf("EncodeGeneralInteger(%v) = %x, want %x", input, result, expected)
		}
	}
}

func TestGeneralIntegerRoundTrip(t *testing.T) {
	for _, x := range []uint64{0, 1, 127, 128, 1 << 14, 1<<21 - 1, 1 << 35, 1<<56 - 1, 1 << 56, 1<<64 - 1} {
		enc := EncodeGeneralInteger(x)
		got, n, err := DecodeGeneralInteger(enc)
		if err != nil || got != x || n != len(enc) {
			t.Errorf("round trip %d: got %d n=%d err=%v (enc %x)", x, got, n, err, enc)
		}
	}
	if _, _, err := DecodeGeneralInteger([]byte{0xc0, 0x01}); err != ErrShortInput {
		t.Errorf("truncated input: err=%v", err)
	}
}

func TestEncodeDiscriminated(t *testing.T) {
	input := []byte{0x01, 0x02}
	expected := []byte{0x02, 0x01, 0x02}
	result := EncodeDiscriminated(input)
	if !reflect.DeepEqual(expected, result) {
		t.Errorf("EncodeDiscriminated(%v) = %v, want %v", input, result, expected)
	}
}

func TestEncodeBitSequence(t *testing.T) {
	input := []bool{true, false, true, true}
	expected := []byte{0x04, 0x0d}
	result := EncodeBitSequence(input)
	if !reflect.DeepEqual(expected, result) {
		t.Errorf("EncodeBitSequence(%v) = %v, want %v", input, result, expected)
	}
}

func TestEncoderDecoder(t *testing.T) {
	var e Encoder
	e.Uint(70000)
	e.String("execute_binary")
	e.Bool(true)
	e.Bits([]bool{false, true, false, false, false, false, false, false, true})
	e.Byte(7)

	d := NewDecoder(e.Out())
	if v := d.Uint(); v != 70000 {
		t.Errorf("Uint = %d", v)
	}
	if s := d.String(); s != "execute_binary" {
		t.Errorf("String = %q", s)
	}
	if !d.Bool() {
		t.Errorf("Bool = false")
	}
	bits := d.Bits()
	if len(bits) != 9 || !bits[1] || !bits[8] || bits[0] {
		t.Errorf("Bits = %v", bits)
	}
	if b := d.Byte(); b != 7 {
		t.Errorf("Byte = %d", b)
	}
	if !d.Done() {
		t.Errorf("decoder not done: err=%v", d.Err())
	}
	d.Byte()
	if d.Err() != ErrShortInput {
		t.Errorf("read past end: err=%v", d.Err())
	}
}

func TestDecoderRejectsLongLength(t *testing.T) {
	d := NewDecoder([]byte{0x05, 'a', 'b'})
	_ = d.Bytes()
	if d.Err() != ErrOverflow {
		t.Errorf("err = %v", d.Err())
	}
}
