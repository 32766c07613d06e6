package fabric

/*
 * vplat - Target port
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
	"time"

	"github.com/rcornwell/vplat/tlm"
)

// Target is the component side of a target port. Transport handles a
// payload and may advance the caller's local time offset;
// DebugTransport must leave time untouched; GetDirectMem answers DMI
// descriptor queries.
type Target interface {
	Transport(tx *tlm.Payload, offset *time.Duration) int
	DebugTransport(tx *tlm.Payload) int
	GetDirectMem(tx *tlm.Payload) (tlm.DMI, bool)
}

// TargetPort receives transactions for its hosting component and
// tracks the initiator ports bound to it so DMI invalidations reach
// every cache that may hold a stale descriptor.
type TargetPort struct {
	name       string
	host       Target
	initiators []*InitiatorPort
}

// NewTargetPort creates a port for the given target component.
func NewTargetPort(name string, host Target) *TargetPort {
	if host == nil {
		panic("fabric: target port declared without host")
	}
	return &TargetPort{name: name, host: host}
}

// Name of this port.
func (p *TargetPort) Name() string {
	return p.name
}

// Host returns the component behind this port.
func (p *TargetPort) Host() Target {
	return p.host
}

func (p *TargetPort) attach(i *InitiatorPort) {
	p.initiators = append(p.initiators, i)
}

// InvalidateDMI broadcasts a DMI invalidation to every bound
// initiator port.
func (p *TargetPort) InvalidateDMI(r tlm.Range) {
	for _, i := range p.initiators {
		i.InvalidateDMI(r)
	}
}
