// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package acquisition

import (
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/pkg/lidar"
)

// Observer receives controller events. Callbacks run on the goroutine that
// produced the event, which may be the polling worker, and must not call
// back into the controller synchronously.
type Observer interface {
	OnStateChange(from, to State)
	OnMeasurement(m measure.Measurement)
	OnStatus(s lidar.Status)
	OnLaser(on bool)
	OnError(err error)
}

// Observers fans every event out to each member in order
type Observers []Observer

func (o Observers) OnStateChange(from, to State) {
	for _, obs := range o {
		obs.OnStateChange(from, to)
	}
}

func (o Observers) OnMeasurement(m measure.Measurement) {
	for _, obs := range o {
		obs.OnMeasurement(m)
	}
}

func (o Observers) OnStatus(s lidar.Status) {
	for _, obs := range o {
		obs.OnStatus(s)
	}
}

func (o Observers) OnLaser(on bool) {
	for _, obs := range o {
		obs.OnLaser(on)
	}
}

func (o Observers) OnError(err error) {
	for _, obs := range o {
		obs.OnError(err)
	}
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	StateChange func(from, to State)
	Measurement func(m measure.Measurement)
	Status      func(s lidar.Status)
	Laser       func(on bool)
	Error       func(err error)
}

func (f ObserverFuncs) OnStateChange(from, to State) {
	if f.StateChange != nil {
		f.StateChange(from, to)
	}
}

func (f ObserverFuncs) OnMeasurement(m measure.Measurement) {
	if f.Measurement != nil {
		f.Measurement(m)
	}
}

func (f ObserverFuncs) OnStatus(s lidar.Status) {
	if f.Status != nil {
		f.Status(s)
	}
}

func (f ObserverFuncs) OnLaser(on bool) {
	if f.Laser != nil {
		f.Laser(on)
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
