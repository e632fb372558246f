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
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type memSink struct {
	mu     sync.Mutex
	name   string
	buf    bytes.Buffer
	gate   chan struct{}
	err    error
	closed bool
}

func (s *memSink) Write(p []byte) (int, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) Name() string {
	return s.name
}

func (s *memSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestPipelineBackpressure(t *testing.T) {
	const slots = 3
	sink := &memSink{name: "rows", gate: make(chan struct{})}
	p := NewPipeline(slots)
	require.NoError(t, p.SetSink(sink))

	flushed := atomic.NewInt64(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			p.Buffer().WriteString(fmt.Sprintf("stmt%d;", i))
			if err := p.Flush(); err != nil {
				return
			}
			flushed.Inc()
		}
	}()

	// the writer holds slot 0 so the producer blocks on the last free slot
	assert.Eventually(t, func() bool { return flushed.Load() == slots-1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(slots-1), flushed.Load())

	close(sink.gate)
	<-done
	require.NoError(t, p.Close())
	assert.Equal(t, "stmt0;stmt1;stmt2;stmt3;stmt4;stmt5;stmt6;stmt7;stmt8;stmt9;", sink.String())
	assert.Equal(t, uint64(len(sink.String())), p.Written())
}

func TestPipelineStickyError(t *testing.T) {
	sink := &memSink{name: "rows", err: errors.New("disk full")}
	p := NewPipeline(2)
	require.NoError(t, p.SetSink(sink))

	for i := 0; i < 5; i++ {
		p.Buffer().WriteString("x")
		_ = p.Flush()
	}
	assert.Error(t, p.Drain())
	assert.Equal(t, 0, p.InFlight())

	p.Reset()
	sink.err = nil
	p.Buffer().WriteString("ok")
	require.NoError(t, p.Flush())
	require.NoError(t, p.Close())
	assert.Equal(t, "ok", sink.String())
}

type chunkedWriter struct {
	out   bytes.Buffer
	max   int
	zeros int
}

func (w *chunkedWriter) Write(p []byte) (int, error) {
	if w.zeros > 0 {
		w.zeros--
		return 0, nil
	}
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.out.Write(p)
}

func TestWriteFull(t *testing.T) {
	w := &chunkedWriter{max: 3, zeros: 1}
	n, err := WriteFull(w, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "0123456789", w.out.String())

	w = &chunkedWriter{max: 3, zeros: 2}
	_, err = WriteFull(w, []byte("0123456789"))
	assert.Error(t, err)

	_, err = WriteFull(&memSink{err: io.ErrShortWrite}, []byte("x"))
	assert.Error(t, err)
}
