/*
Copyright © 2020 Marvin

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package writer

import (
	"bytes"
	"sync"

	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
)

type signal struct {
	slot int
	stop bool
}

// Pipeline is the per worker ring of statement buffers drained by one writer goroutine.
// The producer fills Buffer, hands it off with Flush and never has more than len(slots)
// buffers unacknowledged.
type Pipeline struct {
	slots    []*bytes.Buffer
	pos      int
	inflight int

	signals chan signal
	acks    chan int
	done    chan struct{}

	// sink is swapped only while no buffer is in flight
	sink    Sink
	written *atomic.Uint64

	mu  sync.Mutex
	err error
}

func NewPipeline(slots int) *Pipeline {
	if slots <= 0 {
		slots = constant.DefaultDumpWriteBufferSlots
	}
	p := &Pipeline{
		slots:   make([]*bytes.Buffer, slots),
		signals: make(chan signal, slots),
		acks:    make(chan int, slots),
		done:    make(chan struct{}),
		written: atomic.NewUint64(0),
	}
	for i := range p.slots {
		p.slots[i] = new(bytes.Buffer)
	}
	go p.run()
	return p
}

func (p *Pipeline) run() {
	defer close(p.done)
	for sig := range p.signals {
		if sig.stop {
			return
		}
		if p.Err() == nil && p.sink != nil {
			n, err := WriteFull(p.sink, p.slots[sig.slot].Bytes())
			p.written.Add(uint64(n))
			if err != nil {
				p.setErr(err)
			}
		}
		// acknowledge even after a failure so the producer never blocks forever
		p.acks <- sig.slot
	}
}

// Buffer returns the slot being filled
func (p *Pipeline) Buffer() *bytes.Buffer {
	return p.slots[p.pos]
}

// Flush hands the current slot to the writer and moves to the next one, blocking on an
// acknowledgment when every slot is in flight
func (p *Pipeline) Flush() error {
	p.signals <- signal{slot: p.pos}
	p.inflight++
	p.pos = (p.pos + 1) % len(p.slots)

	select {
	case <-p.acks:
		p.inflight--
	default:
	}
	if p.inflight >= len(p.slots) {
		<-p.acks
		p.inflight--
	}
	p.slots[p.pos].Reset()
	return p.Err()
}

// Drain waits for every buffer in flight and returns the sticky write error
func (p *Pipeline) Drain() error {
	for p.inflight > 0 {
		<-p.acks
		p.inflight--
	}
	return p.Err()
}

// SetSink drains the ring and directs the next writes to sink, resetting the byte counter
func (p *Pipeline) SetSink(sink Sink) error {
	err := p.Drain()
	p.sink = sink
	p.written.Store(0)
	p.slots[p.pos].Reset()
	return err
}

// Reset clears the sticky error for the next job
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
}

// Written returns the bytes written into the current sink
func (p *Pipeline) Written() uint64 {
	return p.written.Load()
}

// InFlight returns the buffers handed off and not yet acknowledged
func (p *Pipeline) InFlight() int {
	return p.inflight
}

func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Close stops the writer goroutine after the buffers in flight
func (p *Pipeline) Close() error {
	err := p.Drain()
	p.signals <- signal{stop: true}
	<-p.done
	return err
}
