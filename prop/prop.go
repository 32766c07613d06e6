package prop

/*
 * vplat - Attribute registry and typed properties
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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Separator joins the levels of a hierarchical attribute name.
const Separator = "."

// Attribute is a named, typed value visible to the session protocol.
// Names are hierarchical: "platform.mem.size".
type Attribute interface {
	Name() string
	Type() string
	Count() int
	String() string
	SetString(val string) error
}

var (
	regLock sync.Mutex
	attrs   = map[string]Attribute{}
	order   []string
)

// Register adds an attribute to the global registry. If the process
// environment defines the attribute's name (hierarchy separators
// replaced by underscores) the value initializes from the
// environment.
func Register(a Attribute) {
	regLock.Lock()
	if _, ok := attrs[a.Name()]; !ok {
		order = append(order, a.Name())
	}
	attrs[a.Name()] = a
	regLock.Unlock()

	if val, ok := brokerLookup(a.Name()); ok {
		_ = a.SetString(val)
	}
}

// Find looks up an attribute by its full hierarchical name.
func Find(name string) (Attribute, bool) {
	regLock.Lock()
	defer regLock.Unlock()
	a, ok := attrs[name]
	return a, ok
}

// List returns every registered attribute in registration order.
func List() []Attribute {
	regLock.Lock()
	defer regLock.Unlock()
	res := make([]Attribute, 0, len(order))
	for _, name := range order {
		res = append(res, attrs[name])
	}
	return res
}

// ForOwner returns the attributes directly under the given owner.
func ForOwner(owner string) []Attribute {
	prefix := owner + Separator
	var res []Attribute
	for _, a := range List() {
		rest, ok := strings.CutPrefix(a.Name(), prefix)
		if ok && !strings.Contains(rest, Separator) {
			res = append(res, a)
		}
	}
	return res
}

// Basename strips the owner part of a hierarchical name.
func Basename(name string) string {
	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Reset clears the registry. Test knob.
func Reset() {
	regLock.Lock()
	attrs = map[string]Attribute{}
	order = nil
	regLock.Unlock()
}

// Array values travel as one string with ',' separating the elements
// and embedded commas escaped with a backslash.

// JoinList encodes array elements into one attribute value.
func JoinList(vals []string) string {
	escaped := make([]string, len(vals))
	for i, v := range vals {
		escaped[i] = strings.ReplaceAll(v, ",", "\\,")
	}
	return strings.Join(escaped, ",")
}

// SplitList decodes an attribute value into its array elements.
func SplitList(s string) []string {
	var vals []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == ',':
			cur.WriteByte(',')
			i++
		case s[i] == ',':
			vals = append(vals, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	vals = append(vals, cur.String())
	return vals
}

// U64 is an unsigned 64-bit property.
type U64 struct {
	name string
	val  uint64
}

// NewU64 registers a u64 property with a default value.
func NewU64(name string, def uint64) *U64 {
	p := &U64{name: name, val: def}
	Register(p)
	return p
}

func (p *U64) Name() string { return p.name }
func (p *U64) Type() string { return "u64" }
func (p *U64) Count() int { return 1 }
func (p *U64) Get() uint64 { return p.val }
func (p *U64) Set(val uint64) { p.val = val }

func (p *U64) String() string {
	return fmt.Sprintf("%#x", p.val)
}

func (p *U64) SetString(val string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(val), 0, 64)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", p.name, err)
	}
	p.val = v
	return nil
}

// Bool is a boolean property.
type Bool struct {
	name string
	val  bool
}

// NewBool registers a boolean property with a default value.
func NewBool(name string, def bool) *Bool {
	p := &Bool{name: name, val: def}
	Register(p)
	return p
}

func (p *Bool) Name() string { return p.name }
func (p *Bool) Type() string { return "bool" }
func (p *Bool) Count() int { return 1 }
func (p *Bool) Get() bool { return p.val }
func (p *Bool) Set(val bool) { p.val = val }

func (p *Bool) String() string {
	return strconv.FormatBool(p.val)
}

func (p *Bool) SetString(val string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("attribute %s: %w", p.name, err)
	}
	p.val = v
	return nil
}

// Str is a string property.
type Str struct {
	name string
	val  string
}

// NewStr registers a string property with a default value.
func NewStr(name, def string) *Str {
	p := &Str{name: name, val: def}
	Register(p)
	return p
}

func (p *Str) Name() string { return p.name }
func (p *Str) Type() string { return "string" }
func (p *Str) Count() int { return 1 }
func (p *Str) Get() string { return p.val }
func (p *Str) Set(val string) { p.val = val }
func (p *Str) String() string { return p.val }
func (p *Str) SetString(v string) error {
	p.val = v
	return nil
}

// Int is a signed 64-bit property.
type Int struct {
	name string
	val  int64
}

// NewInt registers a signed integer property with a default value.
func NewInt(name string, def int64) *Int {
	p := &Int{name: name, val: def}
	Register(p)
	return p
}

func (p *Int) Name() string { return p.name }
func (p *Int) Type() string { return "i64" }
func (p *Int) Count() int { return 1 }
func (p *Int) Get() int64 { return p.val }
func (p *Int) Set(val int64) { p.val = val }

func (p *Int) String() string {
	return strconv.FormatInt(p.val, 10)
}

func (p *Int) SetString(val string) error {
	v, err := strconv.ParseInt(strings.TrimSpace(val), 0, 64)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", p.name, err)
	}
	p.val = v
	return nil
}

// Duration is a simulated-time property. Values parse either as a Go
// duration ("10us") or as a bare nanosecond count.
type Duration struct {
	name string
	val  time.Duration
}

// NewDuration registers a duration property with a default value.
func NewDuration(name string, def time.Duration) *Duration {
	p := &Duration{name: name, val: def}
	Register(p)
	return p
}

func (p *Duration) Name() string { return p.name }
func (p *Duration) Type() string { return "duration" }
func (p *Duration) Count() int { return 1 }
func (p *Duration) Get() time.Duration { return p.val }
func (p *Duration) Set(val time.Duration) { p.val = val }

func (p *Duration) String() string {
	return p.val.String()
}

func (p *Duration) SetString(val string) error {
	val = strings.TrimSpace(val)
	d, err := time.ParseDuration(val)
	if err != nil {
		ns, nerr := strconv.ParseInt(val, 0, 64)
		if nerr != nil {
			return fmt.Errorf("attribute %s: %w", p.name, err)
		}
		d = time.Duration(ns) * time.Nanosecond
	}
	p.val = d
	return nil
}

// U64Array is a fixed-size array of unsigned values.
type U64Array struct {
	name string
	vals []uint64
}

// NewU64Array registers an array property with every element set to
// the default value.
func NewU64Array(name string, count int, def uint64) *U64Array {
	if count < 1 {
		count = 1
	}
	p := &U64Array{name: name, vals: make([]uint64, count)}
	for i := range p.vals {
		p.vals[i] = def
	}
	Register(p)
	return p
}

func (p *U64Array) Name() string { return p.name }
func (p *U64Array) Type() string { return "u64" }
func (p *U64Array) Count() int { return len(p.vals) }
func (p *U64Array) Get(idx int) uint64 { return p.vals[idx] }
func (p *U64Array) Set(idx int, val uint64) { p.vals[idx] = val }

func (p *U64Array) String() string {
	vals := make([]string, len(p.vals))
	for i, v := range p.vals {
		vals[i] = fmt.Sprintf("%#x", v)
	}
	return JoinList(vals)
}

func (p *U64Array) SetString(val string) error {
	parts := SplitList(val)
	if len(parts) != len(p.vals) {
		return fmt.Errorf("attribute %s needs %d initializers, %d given",
			p.name, len(p.vals), len(parts))
	}
	vals := make([]uint64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 0, 64)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", p.name, err)
		}
		vals[i] = v
	}
	copy(p.vals, vals)
	return nil
}

// StrArray is a fixed-size array of strings.
type StrArray struct {
	name string
	vals []string
}

// NewStrArray registers a string array property.
func NewStrArray(name string, def []string) *StrArray {
	p := &StrArray{name: name, vals: append([]string{}, def...)}
	if len(p.vals) == 0 {
		p.vals = []string{""}
	}
	Register(p)
	return p
}

func (p *StrArray) Name() string { return p.name }
func (p *StrArray) Type() string { return "string" }
func (p *StrArray) Count() int { return len(p.vals) }
func (p *StrArray) Get(idx int) string { return p.vals[idx] }
func (p *StrArray) Set(idx int, val string) { p.vals[idx] = val }

func (p *StrArray) String() string {
	return JoinList(p.vals)
}

func (p *StrArray) SetString(val string) error {
	parts := SplitList(val)
	if len(parts) != len(p.vals) {
		return fmt.Errorf("attribute %s needs %d initializers, %d given",
			p.name, len(p.vals), len(parts))
	}
	copy(p.vals, parts)
	return nil
}
