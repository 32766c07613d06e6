package tlm

/*
 * vplat - Generic transaction payload
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

// Payload is the generic transaction travelling between an initiator
// and a target. Initiators allocate one payload per path (normal and
// debug) and reuse it across transactions; Setup resets the mutable
// fields before every send.
type Payload struct {
	Cmd         Command
	Address     uint64
	Data        []byte
	StreamWidth int
	ByteEnable  []byte
	DMIAllowed  bool
	Response    Response
	SBI         Sideband
}

// Setup prepares the payload for a new transaction. Data keeps its
// identity with the caller's buffer; the streaming width defaults to
// the full data length.
func (tx *Payload) Setup(cmd Command, addr uint64, data []byte) {
	tx.Cmd = cmd
	tx.Address = addr
	tx.Data = data
	tx.StreamWidth = len(data)
	tx.ByteEnable = nil
	tx.DMIAllowed = false
	tx.Response = Incomplete
	tx.SBI = SbiNone
}

// Range covered by this transaction.
func (tx *Payload) Range() Range {
	return RangeAt(tx.Address, uint64(len(tx.Data)))
}

// Validate applies the payload guardrails checked on entry to send.
// It sets the response and returns false when the payload is
// malformed.
func (tx *Payload) Validate() bool {
	size := len(tx.Data)
	width := tx.StreamWidth
	if width <= 0 || width > size || size%width != 0 {
		tx.Response = BurstError
		return false
	}
	if tx.ByteEnable != nil && len(tx.ByteEnable) == 0 {
		tx.Response = ByteEnableError
		return false
	}
	return true
}

// IsResponseOK reports a completed, successful transaction.
func (tx *Payload) IsResponseOK() bool {
	return tx.Response == OK
}

// EnabledByte checks the byte-enable mask for the byte at index i of
// the data buffer. A nil mask enables everything; the mask repeats
// when shorter than the data.
func (tx *Payload) EnabledByte(i int) bool {
	if tx.ByteEnable == nil {
		return true
	}
	return tx.ByteEnable[i%len(tx.ByteEnable)] != 0
}
