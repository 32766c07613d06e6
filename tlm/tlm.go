package tlm

/*
 * vplat - Transaction protocol types
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

// Command selects the direction of a transaction.
type Command int

const (
	Ignore Command = iota
	Read
	Write
)

func (c Command) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return "ignore"
}

// Response reports the outcome of a transaction. Incomplete is never
// returned to a caller; seeing one there indicates a bug in a target.
type Response int

const (
	Incomplete Response = iota
	OK
	AddressError
	CommandError
	BurstError
	ByteEnableError
	GenericError
)

func (r Response) String() string {
	switch r {
	case OK:
		return "ok"
	case Incomplete:
		return "incomplete"
	case AddressError:
		return "address error"
	case CommandError:
		return "command error"
	case BurstError:
		return "burst error"
	case ByteEnableError:
		return "byte enable error"
	}
	return "generic error"
}

// Access describes permissions as a bit set so domination checks are a
// mask test: a read-write descriptor satisfies a read request, a
// read-only one does not satisfy a write.
type Access int

const (
	AccessNone  Access = 0
	AccessRead  Access = 1
	AccessWrite Access = 2
	AccessRW    Access = AccessRead | AccessWrite
)

// Allows reports whether permissions held dominate the requested ones.
func (a Access) Allows(want Access) bool {
	return a&want == want
}

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "r"
	case AccessWrite:
		return "w"
	case AccessRW:
		return "rw"
	}
	return "none"
}

// AccessFor maps a command to the permission it requires.
func AccessFor(cmd Command) Access {
	switch cmd {
	case Read:
		return AccessRead
	case Write:
		return AccessWrite
	}
	return AccessNone
}
