package hex

/*
 * vplat - Hex helper tests
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	var sb strings.Builder
	FormatBytes(&sb, false, []byte{0xde, 0xad, 0xbe, 0xef})
	if sb.String() != "deadbeef" {
		t.Errorf("FormatBytes not correct got: %s expected: %s", sb.String(), "deadbeef")
	}
	sb.Reset()
	FormatBytes(&sb, true, []byte{0x01, 0x02})
	if sb.String() != "01 02 " {
		t.Errorf("FormatBytes spaced not correct got: %q", sb.String())
	}
}

func TestFormatWord(t *testing.T) {
	var sb strings.Builder
	FormatWord(&sb, 0x1a2b, 8)
	if sb.String() != "00001a2b" {
		t.Errorf("FormatWord not correct got: %s expected: %s", sb.String(), "00001a2b")
	}
}

func TestDecodeBytes(t *testing.T) {
	got, ok := DecodeBytes("DeadBEEF")
	if !ok || !bytes.Equal(got, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("DecodeBytes not correct got: % x", got)
	}
	if _, ok := DecodeBytes("abc"); ok {
		t.Errorf("Odd length string should fail")
	}
	if _, ok := DecodeBytes("zz"); ok {
		t.Errorf("Non-hex string should fail")
	}
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in   string
		val  uint64
		good bool
	}{
		{"0", 0, true},
		{"1337", 0x1337, true},
		{"ffffffffffffffff", ^uint64(0), true},
		{"", 0, false},
		{"12345678901234567", 0, false},
		{"12g4", 0, false},
	}
	for _, test := range tests {
		val, ok := ParseUint(test.in)
		if ok != test.good || val != test.val {
			t.Errorf("ParseUint(%q) got: %#x,%v expected: %#x,%v", test.in, val, ok, test.val, test.good)
		}
	}
}
