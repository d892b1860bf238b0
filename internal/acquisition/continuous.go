// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package acquisition

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/internal/scan"
	"github.com/opticbench/aodscan/pkg/lidar"
)

// StartContinuous puts the sensor in streaming mode and polls it until
// StopContinuous, Disconnect, or too many consecutive read errors.
func (c *Controller) StartContinuous(mode Mode) error {
	cmd, effective := mode.command()
	if mode == ModeAuto {
		c.logger.Info("sensor has no automatic rate, using slow mode")
	}

	sensor, err := c.require("continuous", Connected)
	if err != nil {
		return err
	}
	if _, err := sensor.Send(cmd, false, 0); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.session == nil || c.session.State != Connected {
		s := Disconnected
		if c.session != nil {
			s = c.session.State
		}
		c.mu.Unlock()
		return stateError("continuous", s)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.pollCancel = cancel
	c.pollDone = done
	c.lastErr = nil
	c.session.Mode = effective
	c.session.ConsecutiveErrors = 0
	c.setStateLocked(Continuous)
	c.mu.Unlock()

	c.logger.WithField("mode", effective).Info("continuous measurement started")
	c.emitState(Connected, Continuous)
	go c.poll(ctx, sensor, done)
	return nil
}

func (c *Controller) poll(ctx context.Context, sensor *lidar.Sensor, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		text, err := sensor.Poll(c.cfg.PollTimeout)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			if strings.TrimSpace(text) == "" {
				continue
			}
			var d lidar.Distance
			if d, err = lidar.ParseDistance(text); err == nil {
				if !c.countSuccess(done) {
					return
				}
				c.deliver(d)
				continue
			}
		}

		count, owned := c.countError(done)
		if !owned {
			return
		}
		if c.metrics != nil {
			c.metrics.MeasurementErrors.WithLabelValues(ErrorKind(err)).Inc()
		}
		c.logger.WithError(err).WithField("consecutive", count).Warn("measurement read failed")
		if count >= c.cfg.MaxConsecutiveErrors {
			c.abort(sensor, done, count, err)
			return
		}
	}
}

func (c *Controller) countSuccess(done chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollDone != done {
		return false
	}
	c.session.ConsecutiveErrors = 0
	return true
}

func (c *Controller) countError(done chan struct{}) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollDone != done {
		return 0, false
	}
	c.session.ConsecutiveErrors++
	return c.session.ConsecutiveErrors, true
}

// abort ends the session's continuous run from inside the worker
func (c *Controller) abort(sensor *lidar.Sensor, done chan struct{}, count int, last error) {
	c.mu.Lock()
	if c.pollDone != done {
		c.mu.Unlock()
		return
	}
	c.pollCancel()
	c.pollCancel = nil
	c.pollDone = nil
	terr := &ThresholdError{Count: count, Last: last}
	c.lastErr = terr
	from := c.setStateLocked(Connected)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ContinuousAborts.Inc()
	}
	c.logger.WithError(terr).Error("continuous measurement aborted")
	c.sendStop(sensor)
	c.emitState(from, Connected)
	c.observer.OnError(terr)
}

func (c *Controller) sendStop(sensor *lidar.Sensor) {
	if _, err := sensor.Send(lidar.StopMeasure, false, 0); err != nil {
		c.logger.WithError(err).Warn("stop command failed")
	}
	c.sleep(c.cfg.StopSettle)
	if err := sensor.Flush(); err != nil {
		c.logger.WithError(err).Warn("input flush failed")
	}
}

// StopContinuous stops a running continuous session. It is a no-op in any
// other state.
func (c *Controller) StopContinuous() error {
	c.mu.Lock()
	if c.session == nil || c.session.State != Continuous {
		c.mu.Unlock()
		return nil
	}
	cancel, done, sensor := c.pollCancel, c.pollDone, c.sensor
	c.pollCancel = nil
	c.pollDone = nil
	from := c.setStateLocked(Connected)
	c.mu.Unlock()

	cancel()
	if c.cfg.JoinTimeout > 0 {
		timer := time.NewTimer(c.cfg.JoinTimeout)
		select {
		case <-done:
		case <-timer.C:
			c.logger.Warn("polling worker did not exit within join timeout")
		}
		timer.Stop()
	} else {
		<-done
	}

	c.sendStop(sensor)
	c.logger.Info("continuous measurement stopped")
	c.emitState(from, Connected)
	return nil
}

// WaitContinuous blocks until the current continuous run ends or ctx is
// done. It returns the ThresholdError of an aborted run.
func (c *Controller) WaitContinuous(ctx context.Context) error {
	c.mu.Lock()
	done := c.pollDone
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Err()
}

// StartPattern resolves id with overrides and starts scanning it
func (c *Controller) StartPattern(id string, overrides scan.Params) error {
	if c.engine == nil || c.registry == nil {
		return ErrNoDeflector
	}
	if _, err := c.require("scan", Connected); err != nil {
		return err
	}

	gen, params, err := c.registry.Resolve(id, overrides)
	if err != nil {
		return err
	}
	done, err := c.engine.Start(id, gen)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.session == nil || c.session.State != Connected {
		s := Disconnected
		if c.session != nil {
			s = c.session.State
		}
		c.mu.Unlock()
		_ = c.engine.Stop()
		return stateError("scan", s)
	}
	c.session.PatternID = id
	c.scanDone = done
	c.setStateLocked(Scanning)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"pattern": id, "params": params}).Info("pattern started")
	c.emitState(Connected, Scanning)
	go c.watchScan(done)
	return nil
}

// watchScan returns to Connected when a pattern ends on its own
func (c *Controller) watchScan(done <-chan struct{}) {
	<-done

	c.mu.Lock()
	if c.scanDone != done || c.session == nil || c.session.State != Scanning {
		c.mu.Unlock()
		return
	}
	c.scanDone = nil
	c.session.PatternID = ""
	from := c.setStateLocked(Connected)
	c.mu.Unlock()

	c.emitState(from, Connected)
	if err := c.engine.Err(); err != nil {
		c.observer.OnError(err)
	}
}

// StopPattern stops the running pattern. It is a no-op unless Scanning.
func (c *Controller) StopPattern() error {
	c.mu.Lock()
	if c.session == nil || c.session.State != Scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanDone = nil
	c.session.PatternID = ""
	from := c.setStateLocked(Connected)
	c.mu.Unlock()

	err := c.engine.Stop()
	c.logger.Info("pattern stopped")
	c.emitState(from, Connected)
	return err
}
