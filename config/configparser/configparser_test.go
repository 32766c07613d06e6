package configparser

/*
 * vplat - Configuration parser tests
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
	"strings"
	"testing"
)

// Model lines dispatch to their create functions with positional and
// keyed arguments split apart.
func TestLoadConfig(t *testing.T) {
	Reset()
	type call struct {
		args []string
		opts []Option
	}
	var calls []call
	RegisterModel("memory", func(args []string, opts []Option) error {
		calls = append(calls, call{args, opts})
		return nil
	})

	cfg := `
# platform memory
memory ram0 64K readonly align=12
memory ram1 1M images="boot.bin @ 0x100" # trailing comment
`
	if err := LoadConfig(strings.NewReader(cfg)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("Model calls not correct got: %d expected: %d", len(calls), 2)
	}
	if calls[0].args[0] != "ram0" || calls[0].args[1] != "64K" || calls[0].args[2] != "readonly" {
		t.Errorf("First line args not correct got: %v", calls[0].args)
	}
	if len(calls[0].opts) != 1 || calls[0].opts[0].Name != "align" || calls[0].opts[0].Value != "12" {
		t.Errorf("First line options not correct got: %v", calls[0].opts)
	}
	if calls[1].opts[0].Value != "boot.bin @ 0x100" {
		t.Errorf("Quoted option not correct got: %q", calls[1].opts[0].Value)
	}
}

// Unknown models report the line number.
func TestLoadConfigUnknown(t *testing.T) {
	Reset()
	err := LoadConfig(strings.NewReader("\n\nbogus 123\n"))
	if err == nil {
		t.Fatalf("Unknown model should fail")
	}
	if !strings.Contains(err.Error(), "3:") {
		t.Errorf("Error should carry line number got: %v", err)
	}
}

// Unterminated quotes are rejected.
func TestLoadConfigBadQuote(t *testing.T) {
	Reset()
	RegisterModel("memory", func([]string, []Option) error { return nil })
	err := LoadConfig(strings.NewReader("memory ram \"oops\n"))
	if err == nil {
		t.Errorf("Unterminated quote should fail")
	}
}

// Sizes accept K, M and G suffixes, hex and decimal.
func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		val  uint64
		good bool
	}{
		{"4096", 4096, true},
		{"0x1000", 4096, true},
		{"64K", 64 * 1024, true},
		{"2M", 2 * 1024 * 1024, true},
		{"1G", 1024 * 1024 * 1024, true},
		{"junk", 0, false},
	}
	for _, test := range tests {
		val, err := ParseSize(test.in)
		if (err == nil) != test.good || val != test.val {
			t.Errorf("ParseSize(%q) got: %d,%v expected: %d,%v", test.in, val, err, test.val, test.good)
		}
	}
}
