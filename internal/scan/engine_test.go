// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package scan

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSetter struct {
	mu      sync.Mutex
	angles  []float64
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (r *recordingSetter) SetAngle(angle float64) error {
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.angles = append(r.angles, angle)
	return r.err
}

func (r *recordingSetter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.angles)
}

func TestEngineStopLatency(t *testing.T) {
	setter := &recordingSetter{}
	engine := NewEngine(setter)

	// one second per step
	gen, err := Line(0, 1, 0.1, 10)
	require.NoError(t, err)
	_, err = engine.Start("line", gen)
	require.NoError(t, err)
	assert.True(t, engine.Active())
	assert.Equal(t, "line", engine.Current())

	require.Eventually(t, func() bool { return setter.count() >= 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.NoError(t, engine.Stop())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, engine.Active())
	assert.Empty(t, engine.Current())
	assert.Equal(t, 1, setter.count())
}

func TestEngineAlreadyScanning(t *testing.T) {
	engine := NewEngine(&recordingSetter{})
	gen, _ := Circle(0.5, 0.1, 50)
	_, err := engine.Start("circle", gen)
	require.NoError(t, err)
	defer engine.Stop()

	other, _ := Point(0)
	_, err = engine.Start("point", other)
	assert.ErrorIs(t, err, ErrAlreadyScanning)
}

func TestEngineFiniteFinish(t *testing.T) {
	setter := &recordingSetter{}
	finished := make(chan error, 1)
	engine := NewEngine(setter, WithFinishHook(func(id string, err error) {
		assert.Equal(t, "point", id)
		finished <- err
	}))

	gen, _ := Point(0.1)
	done, err := engine.Start("point", gen)
	require.NoError(t, err)

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("finish hook not called")
	}
	<-done
	assert.False(t, engine.Active())
	assert.Equal(t, []float64{0.1}, setter.angles)
	assert.NoError(t, engine.Stop())
}

func TestEngineSetterFailure(t *testing.T) {
	boom := errors.New("deflector closed")
	setter := &recordingSetter{err: boom}
	finished := make(chan error, 1)
	engine := NewEngine(setter, WithFinishHook(func(_ string, err error) { finished <- err }))

	gen, _ := Line(-0.5, 0.5, 0.1, 20)
	_, err := engine.Start("line", gen)
	require.NoError(t, err)

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("finish hook not called")
	}
	assert.ErrorIs(t, engine.Err(), boom)
	assert.Equal(t, 1, setter.count())
}

func TestEngineJoinTimeout(t *testing.T) {
	setter := &recordingSetter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	engine := NewEngine(setter, WithJoinTimeout(20*time.Millisecond))

	gen, _ := Point(0)
	done, err := engine.Start("point", gen)
	require.NoError(t, err)
	assert.Equal(t, done, engine.Done())

	select {
	case <-setter.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never reached SetAngle")
	}

	start := time.Now()
	assert.ErrorIs(t, engine.Stop(), ErrJoinTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, engine.Active())

	// the abandoned worker still holds the deflector
	next, _ := Point(1)
	_, err = engine.Start("point", next)
	assert.ErrorIs(t, err, ErrAlreadyScanning)

	close(setter.block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after unblocking")
	}

	next, _ = Point(1)
	again, err := engine.Start("point", next)
	require.NoError(t, err)
	select {
	case <-again:
	case <-time.After(time.Second):
		t.Fatal("second pattern did not finish")
	}
}

func TestEngineStepHook(t *testing.T) {
	var mu sync.Mutex
	var seen []Step
	engine := NewEngine(&recordingSetter{}, WithStepHook(func(_ string, s Step) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))

	gen, _ := Square(0, 1, 4) // zero size: no delay between steps
	_, err := engine.Start("square", gen)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 10
	}, time.Second, time.Millisecond)
	require.NoError(t, engine.Stop())
}
