package mem

/*
 * vplat - Backing store memory target
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
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/rcornwell/vplat/periph"
	"github.com/rcornwell/vplat/prop"
	"github.com/rcornwell/vplat/tlm"
	hexfmt "github.com/rcornwell/vplat/util/hex"
	"github.com/rcornwell/vplat/util/logger"
)

// Image names a file loaded into memory at an offset on reset.
type Image struct {
	Path   string
	Offset uint64
}

// Memory is a backing store target. It maps an anonymous host region
// with a configurable alignment and serves plain reads and writes; it
// hands out a DMI descriptor for its whole range.
type Memory struct {
	*periph.Peripheral

	size     uint64
	readonly bool
	base     []byte // raw mapping
	data     []byte // aligned view of size bytes
	log      *slog.Logger

	// Attributes visible to the session protocol.
	Align  *prop.U64
	Images *prop.Str
	Poison *prop.U64
}

// New maps a memory of size bytes aligned to 2^align host bytes.
func New(name string, size uint64, readonly bool, align uint, rl, wl time.Duration) (*Memory, error) {
	if size == 0 {
		return nil, fmt.Errorf("mem: memory %s size cannot be 0", name)
	}
	if align >= 64 {
		return nil, fmt.Errorf("mem: memory %s alignment %d too big", name, align)
	}

	extra := uint64(1)<<align - 1
	base, err := unix.Mmap(-1, 0, int(size+extra),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap failed: %w", err)
	}

	addr := uintptr(unsafe.Pointer(&base[0]))
	skew := uint64(0)
	if extra > 0 {
		aligned := (uint64(addr) + extra) &^ extra
		skew = aligned - uint64(addr)
	}

	m := &Memory{
		Peripheral: periph.New(name, periph.LittleEndian, rl, wl),
		size:       size,
		readonly:   readonly,
		base:       base,
		data:       base[skew : skew+size],
		log:        logger.With(name),
	}
	m.SetSize(size)

	m.Align = prop.NewU64(name+prop.Separator+"align", uint64(align))
	m.Images = prop.NewStr(name+prop.Separator+"images", "")
	m.Poison = prop.NewU64(name+prop.Separator+"poison", 0)
	prop.NewU64(name+prop.Separator+"size", size)
	prop.NewBool(name+prop.Separator+"readonly", readonly)

	// Latencies are attributes too, so the environment broker can
	// retune them at construction.
	m.ReadLatency = prop.NewDuration(name+prop.Separator+"read_latency", rl).Get()
	m.WriteLatency = prop.NewDuration(name+prop.Separator+"write_latency", wl).Get()

	m.ReadFn = m.read
	m.WriteFn = m.write

	m.Module().AddCommand("load", 1, "Load <binary> [off] into memory at offset [off], zero if unspecified.", m.cmdLoad)
	m.Module().AddCommand("show", 2, "Show memory contents between addresses [start] and [end].", m.cmdShow)
	return m, nil
}

// Size of the memory in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// Data exposes the aligned host region backing the memory.
func (m *Memory) Data() []byte {
	return m.data
}

// Close unmaps the host region.
func (m *Memory) Close() error {
	if m.base == nil {
		return nil
	}
	err := unix.Munmap(m.base)
	m.base = nil
	m.data = nil
	return err
}

func (m *Memory) read(r tlm.Range, data []byte, _ tlm.Sideband) tlm.Response {
	if r.End >= m.size {
		return tlm.AddressError
	}
	copy(data, m.data[r.Start:r.End+1])
	return tlm.OK
}

func (m *Memory) write(r tlm.Range, data []byte, sbi tlm.Sideband) tlm.Response {
	if r.End >= m.size {
		return tlm.AddressError
	}
	// Debug writes land even in read-only memory.
	if m.readonly && !sbi.IsDebug() {
		return tlm.CommandError
	}
	copy(m.data[r.Start:r.End+1], data)
	return tlm.OK
}

// Transport serves the payload and advertises DMI on success.
func (m *Memory) Transport(tx *tlm.Payload, offset *time.Duration) int {
	n := m.Peripheral.Transport(tx, offset)
	if tx.IsResponseOK() {
		tx.DMIAllowed = true
	}
	return n
}

// DebugTransport serves the payload without timing side effects.
func (m *Memory) DebugTransport(tx *tlm.Payload) int {
	return m.Peripheral.DebugTransport(tx)
}

// GetDirectMem grants a descriptor for the whole memory, read-only
// when the memory is.
func (m *Memory) GetDirectMem(*tlm.Payload) (tlm.DMI, bool) {
	acs := tlm.AccessRW
	if m.readonly {
		acs = tlm.AccessRead
	}
	return tlm.DMI{
		Range:        tlm.RangeAt(0, m.size),
		Host:         m.data,
		Access:       acs,
		ReadLatency:  m.ReadLatency,
		WriteLatency: m.WriteLatency,
	}, true
}

// Reset fills the memory with the poison pattern when one is set and
// loads the configured image list.
func (m *Memory) Reset() {
	if poison := byte(m.Poison.Get()); poison > 0 {
		for i := range m.data {
			m.data[i] = poison
		}
	}
	for _, img := range ParseImages(m.Images.Get()) {
		m.log.Debug("loading image", "file", img.Path, "offset", img.Offset)
		m.Load(img.Path, img.Offset)
	}
}

// Load copies a file into memory at the given offset, truncating with
// a warning when the image does not fit.
func (m *Memory) Load(path string, offset uint64) {
	file, err := os.Open(path)
	if err != nil {
		m.log.Warn("cannot open image file", "file", path)
		return
	}
	defer file.Close()

	if offset >= m.size {
		m.log.Warn("image offset exceeds memory size", "offset", offset, "size", m.size)
		return
	}

	info, err := file.Stat()
	if err != nil {
		m.log.Warn("cannot stat image file", "file", path)
		return
	}
	nbytes := uint64(info.Size())
	if nbytes > m.size-offset {
		nbytes = m.size - offset
		m.log.Warn("image file too big, truncating", "file", path, "bytes", nbytes)
	}

	if _, err := io.ReadFull(file, m.data[offset:offset+nbytes]); err != nil {
		m.log.Warn("error reading image file", "file", path, "error", err)
	}
}

// ParseImages splits an image list string of the form
// "<path>[@<offset>];..." with whitespace stripped before parsing.
func ParseImages(s string) []Image {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)

	var images []Image
	for _, cur := range strings.Split(s, ";") {
		if cur == "" {
			continue
		}
		path, off, found := strings.Cut(cur, "@")
		if path == "" {
			continue
		}
		var offset uint64
		if found {
			offset, _ = strconv.ParseUint(off, 0, 64)
		}
		images = append(images, Image{Path: path, Offset: offset})
	}
	return images
}

func (m *Memory) cmdLoad(args []string) (string, error) {
	offset := uint64(0)
	if len(args) > 1 {
		var err error
		offset, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return "", err
		}
	}
	m.Load(args[0], offset)
	return fmt.Sprintf("loaded %s at %#x", args[0], offset), nil
}

func (m *Memory) cmdShow(args []string) (string, error) {
	start, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return "", err
	}
	end, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return "", err
	}
	if end <= start || end >= m.size {
		return "", fmt.Errorf("bad range %#x..%#x", start, end)
	}

	var sb strings.Builder
	addr := start &^ 0xf
	for addr < end {
		if addr%16 == 0 {
			sb.WriteByte('\n')
			hexfmt.FormatWord(&sb, addr, 8)
			sb.WriteByte(':')
		}
		if addr%4 == 0 {
			sb.WriteByte(' ')
		}
		if addr >= start {
			hexfmt.FormatByte(&sb, m.data[addr])
			sb.WriteByte(' ')
		} else {
			sb.WriteString("   ")
		}
		addr++
	}
	return sb.String(), nil
}
