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
package thread

import (
	"fmt"
	"sync"
	"time"

	"github.com/wentaojin/dbdumper/utils/constant"
)

type token struct{}

// A Group runs jobs with bounded concurrency and streams one Result per job on ResultC
type Group struct {
	wg sync.WaitGroup

	sem chan token

	ResultC chan Result
}

// A Result is from the group, Error is nil for a successful job
type Result struct {
	Task     interface{}
	Duration string // unit: seconds
	Error    error
}

func (g *Group) done() {
	if g.sem != nil {
		<-g.sem
	}
	g.wg.Done()
}

func NewGroup() *Group {
	return &Group{ResultC: make(chan Result, constant.DefaultDumpTaskQueueSize)}
}

// Wait blocks until all function calls from the Go method have returned, then closes ResultC.
// ResultC has to be drained concurrently once more jobs than its buffer are submitted.
func (g *Group) Wait() {
	g.wg.Wait()
	if g.sem != nil {
		close(g.sem)
	}
	close(g.ResultC)
}

// Go calls the given function in a new goroutine.
// It blocks until the new goroutine can be added without the number of
// active goroutines in the group exceeding the configured limit.
func (g *Group) Go(job interface{}, fn func(job interface{}) error) {
	if g.sem != nil {
		g.sem <- token{}
	}

	g.wg.Add(1)
	go func(job interface{}) {
		defer g.done()

		startTime := time.Now()
		err := fn(job)
		g.ResultC <- Result{
			Task:     job,
			Duration: fmt.Sprintf("%f", time.Since(startTime).Seconds()),
			Error:    err,
		}
	}(job)
}

// SetLimit limits the number of active goroutines in this group to at most n.
// A negative value indicates no limit.
//
// The limit must not be modified while any goroutines in the group are active.
func (g *Group) SetLimit(n int) {
	if n < 0 {
		g.sem = nil
		g.ResultC = make(chan Result, constant.DefaultDumpTaskQueueSize)
		return
	}
	if len(g.sem) != 0 {
		panic(fmt.Errorf("thread group: modify limit while %v goroutines in the group are still active", len(g.sem)))
	}
	g.sem = make(chan token, n)

	// slow database probes must not block the submitter, the buffer is twice the limit
	g.ResultC = make(chan Result, n*2)
}
