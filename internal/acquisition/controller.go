// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

package acquisition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/internal/config"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/internal/metrics"
	"github.com/opticbench/aodscan/internal/scan"
	"github.com/opticbench/aodscan/pkg/lidar"
	"github.com/opticbench/aodscan/pkg/transport"
)

// Opener opens the sensor link for a port name
type Opener func(port string) (transport.Link, error)

// Option configures a Controller
type Option func(*Controller)

// WithConfig sets the acquisition timings and limits
func WithConfig(cfg config.AcquisitionConfig) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithObserver sets the event observer
func WithObserver(obs Observer) Option {
	return func(c *Controller) { c.observer = obs }
}

// WithScanner enables pattern scanning through engine, resolving pattern
// ids in registry
func WithScanner(engine *scan.Engine, registry *scan.Registry) Option {
	return func(c *Controller) {
		c.engine = engine
		c.registry = registry
	}
}

// WithMetrics records acquisition events in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSensorOptions passes options to every sensor the controller creates
func WithSensorOptions(opts ...lidar.Option) Option {
	return func(c *Controller) { c.sensorOpts = append(c.sensorOpts, opts...) }
}

// WithSleep replaces time.Sleep for the stop settle pause
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// Controller owns the sensor link and the session state. Exported methods
// are safe for concurrent use; the polling and scan workers report back
// through the observer.
type Controller struct {
	opener     Opener
	cfg        config.AcquisitionConfig
	logger     logrus.FieldLogger
	observer   Observer
	engine     *scan.Engine
	registry   *scan.Registry
	metrics    *metrics.Metrics
	sensorOpts []lidar.Option
	sleep      func(time.Duration)

	mu         sync.Mutex
	session    *Session
	sensor     *lidar.Sensor
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	scanDone   <-chan struct{}
	lastErr    error
}

// New creates a disconnected controller
func New(opener Opener, opts ...Option) *Controller {
	c := &Controller{
		opener: opener,
		cfg:    config.GetDefaultConfig().Acquisition,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	c.logger = c.logger.WithField("component", "acquisition")
	if c.observer == nil {
		c.observer = ObserverFuncs{}
	}
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Disconnected
	}
	return c.session.State
}

// Session returns a copy of the current session
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Err returns the error that ended the last continuous session, if any
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// setStateLocked moves the session to s and returns the previous state
func (c *Controller) setStateLocked(s State) State {
	from := Disconnected
	if c.session != nil {
		from = c.session.State
		c.session.State = s
	}
	if c.metrics != nil {
		c.metrics.State.Set(float64(s))
	}
	return from
}

func (c *Controller) emitState(from, to State) {
	if from == to {
		return
	}
	c.logger.WithFields(logrus.Fields{"from": from, "to": to}).Debug("state change")
	c.observer.OnStateChange(from, to)
}

// require returns the sensor when the session is in one of states
func (c *Controller) require(op string, states ...State) (*lidar.Sensor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, stateError(op, Disconnected)
	}
	for _, s := range states {
		if c.session.State == s {
			return c.sensor, nil
		}
	}
	return nil, stateError(op, c.session.State)
}

func (c *Controller) fail(err error) error {
	if c.metrics != nil {
		c.metrics.MeasurementErrors.WithLabelValues(ErrorKind(err)).Inc()
	}
	c.observer.OnError(err)
	return err
}

func (c *Controller) deliver(d lidar.Distance) measure.Measurement {
	m := measure.Measurement{
		Timestamp: time.Now(),
		Distance:  d.Meters,
		Quality:   d.Quality,
	}
	if c.metrics != nil {
		c.metrics.Measurements.Inc()
		c.metrics.LastDistance.Set(d.Meters)
	}
	c.observer.OnMeasurement(m)
	return m
}

// Connect opens port and starts a session. Connecting while connected is a
// no-op.
func (c *Controller) Connect(port string) error {
	c.mu.Lock()
	connected := c.session != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	log := c.logger.WithField("port", port)
	link, err := c.opener(port)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, port, err)
		log.WithError(err).Error("connect failed")
		c.observer.OnError(err)
		return err
	}

	opts := append([]lidar.Option{lidar.WithLogger(c.logger)}, c.sensorOpts...)
	sensor := lidar.NewSensor(link, opts...)

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		_ = sensor.Close()
		return nil
	}
	c.sensor = sensor
	c.session = &Session{
		ID:        uuid.New(),
		Port:      port,
		State:     Connected,
		StartedAt: time.Now(),
	}
	c.lastErr = nil
	id := c.session.ID
	c.setStateLocked(Connected)
	c.mu.Unlock()

	log.WithField("session", id).Info("connected")
	c.emitState(Disconnected, Connected)
	c.observer.OnLaser(false)

	if _, err := c.readStatus(sensor); err != nil {
		log.WithError(err).Warn("initial status request failed")
	}
	return nil
}

// Disconnect stops any running acquisition, switches the laser off when
// configured to and closes the link. The controller is Disconnected
// afterwards even if a step failed.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	laserOn := c.session.LaserOn
	c.mu.Unlock()

	if err := c.StopContinuous(); err != nil {
		c.logger.WithError(err).Warn("stop continuous on disconnect")
	}
	if err := c.StopPattern(); err != nil {
		c.logger.WithError(err).Warn("stop pattern on disconnect")
	}

	c.mu.Lock()
	sensor := c.sensor
	c.mu.Unlock()

	if laserOn && c.cfg.AutoLaserOff {
		if _, _, err := sensor.SetLaser(false); err != nil {
			c.logger.WithError(err).Warn("laser off on disconnect")
		} else {
			c.observer.OnLaser(false)
		}
	}
	closeErr := sensor.Close()

	c.mu.Lock()
	from := c.setStateLocked(Disconnected)
	c.session = nil
	c.sensor = nil
	c.mu.Unlock()

	c.logger.Info("disconnected")
	c.emitState(from, Disconnected)
	return closeErr
}

// MeasureOnce takes a single measurement
func (c *Controller) MeasureOnce(ctx context.Context) (measure.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return measure.Measurement{}, err
	}

	c.mu.Lock()
	if c.session == nil || c.session.State != Connected {
		err := stateError("measure", Disconnected)
		if c.session != nil {
			err = stateError("measure", c.session.State)
		}
		c.mu.Unlock()
		return measure.Measurement{}, err
	}
	sensor := c.sensor
	c.setStateLocked(SingleShot)
	c.mu.Unlock()
	c.emitState(Connected, SingleShot)

	d, err := sensor.Measure()

	c.mu.Lock()
	back := c.session != nil && c.session.State == SingleShot
	if back {
		c.setStateLocked(Connected)
	}
	c.mu.Unlock()
	if back {
		c.emitState(SingleShot, Connected)
	}

	if err != nil {
		c.logger.WithError(err).Warn("measurement failed")
		return measure.Measurement{}, c.fail(err)
	}
	return c.deliver(d), nil
}

// ReadStatus requests the sensor status
func (c *Controller) ReadStatus() (lidar.Status, error) {
	sensor, err := c.require("status", Connected)
	if err != nil {
		return lidar.Status{}, err
	}
	return c.readStatus(sensor)
}

func (c *Controller) readStatus(sensor *lidar.Sensor) (lidar.Status, error) {
	status, err := sensor.Status()
	if err != nil {
		return lidar.Status{}, c.fail(err)
	}
	c.logger.WithFields(logrus.Fields{
		"temperature": status.Temperature,
		"voltage":     status.Voltage,
	}).Debug("status")
	c.observer.OnStatus(status)
	return status, nil
}

// Version requests the sensor firmware version
func (c *Controller) Version() (string, error) {
	sensor, err := c.require("version", Connected)
	if err != nil {
		return "", err
	}
	v, err := sensor.Version()
	if err != nil {
		return "", c.fail(err)
	}
	return v, nil
}

// SetLaser switches the laser. The session flag follows only an
// acknowledged reply.
func (c *Controller) SetLaser(on bool) error {
	sensor, err := c.require("laser", Connected, Continuous, Scanning)
	if err != nil {
		return err
	}

	acked, reply, err := sensor.SetLaser(on)
	if err != nil {
		return c.fail(err)
	}
	if !acked {
		err := fmt.Errorf("%w: reply %q", ErrLaserNotAcknowledged, reply)
		c.logger.WithError(err).Warn("laser")
		c.observer.OnError(err)
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.LaserOn = on
	}
	c.mu.Unlock()
	c.logger.WithField("on", on).Info("laser")
	c.observer.OnLaser(on)
	return nil
}

// ToggleLaser inverts the laser flag and returns the new value
func (c *Controller) ToggleLaser() (bool, error) {
	c.mu.Lock()
	on := c.session != nil && !c.session.LaserOn
	c.mu.Unlock()
	if err := c.SetLaser(on); err != nil {
		return !on, err
	}
	return on, nil
}
