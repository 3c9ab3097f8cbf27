// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spectrum-node/spectrumd/background"
)

// counts until shut down then records a final value
type counter struct {
	count    int64
	final    int64
	finished int64
}

func (c *counter) Run(args interface{}, shutdown <-chan struct{}) {
	step := args.(int64)
loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-time.After(time.Millisecond):
			atomic.AddInt64(&c.count, step)
		}
	}
	atomic.StoreInt64(&c.finished, c.final)
}

func TestStartStop(t *testing.T) {
	c1 := &counter{final: 987654321}
	c2 := &counter{final: 897645312}

	p := background.Start(background.Processes{c1, c2}, int64(9))
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int64(987654321), atomic.LoadInt64(&c1.finished), "first process finished")
	assert.Equal(t, int64(897645312), atomic.LoadInt64(&c2.finished), "second process finished")
	assert.True(t, atomic.LoadInt64(&c1.count) > 0, "first process ran")
	assert.Equal(t, int64(0), atomic.LoadInt64(&c2.count)%9, "step")

	// a second stop returns at once
	p.Stop()
}

func TestStopEmpty(t *testing.T) {
	p := background.Start(nil, nil)
	p.Stop()
}
