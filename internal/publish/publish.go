// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The aodscan Authors

// Package publish forwards acquisition events to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opticbench/aodscan/internal/acquisition"
	"github.com/opticbench/aodscan/internal/config"
	"github.com/opticbench/aodscan/internal/measure"
	"github.com/opticbench/aodscan/pkg/lidar"
)

// Topic suffixes under the configured base topic
const (
	TopicMeasurement = "measurement"
	TopicError       = "error"
	TopicState       = "state"
	TopicStatus      = "status"
)

const publishTimeout = 5 * time.Second

// Client is the part of mqtt.Client the publisher uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MeasurementPayload is the JSON body of a measurement message
type MeasurementPayload struct {
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Distance  float64   `json:"distance_m"`
	Quality   int       `json:"quality"`
}

// ErrorPayload is the JSON body of an error message
type ErrorPayload struct {
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
}

// StatePayload is the JSON body of a retained state message
type StatePayload struct {
	Session string `json:"session,omitempty"`
	From    string `json:"from"`
	State   string `json:"state"`
}

// StatusPayload is the JSON body of a sensor status message
type StatusPayload struct {
	Session          string  `json:"session,omitempty"`
	Temperature      float64 `json:"temperature_c"`
	Voltage          float64 `json:"voltage_v"`
	VoltageDefaulted bool    `json:"voltage_defaulted,omitempty"`
}

func sessionString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// Measurement builds the message body for m
func Measurement(session uuid.UUID, m measure.Measurement) ([]byte, error) {
	return json.Marshal(MeasurementPayload{
		Session:   sessionString(session),
		Timestamp: m.Timestamp.UTC(),
		Distance:  m.Distance,
		Quality:   m.Quality,
	})
}

// Error builds the message body for err
func Error(session uuid.UUID, at time.Time, err error) ([]byte, error) {
	return json.Marshal(ErrorPayload{
		Session:   sessionString(session),
		Timestamp: at.UTC(),
		Kind:      acquisition.ErrorKind(err),
		Error:     err.Error(),
	})
}

// MQTTPublisher is an acquisition observer publishing to <topic>/<event>
type MQTTPublisher struct {
	client  Client
	topic   string
	qos     byte
	logger  logrus.FieldLogger
	session func() uuid.UUID
	now     func() time.Time
}

// NewMQTTPublisher publishes through client under topic. session reports
// the current session id and may be nil.
func NewMQTTPublisher(client Client, topic string, qos byte, session func() uuid.UUID, logger logrus.FieldLogger) *MQTTPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if session == nil {
		session = func() uuid.UUID { return uuid.Nil }
	}
	return &MQTTPublisher{
		client:  client,
		topic:   topic,
		qos:     qos,
		logger:  logger.WithField("component", "mqtt"),
		session: session,
		now:     time.Now,
	}
}

// Topic returns the full topic for an event suffix
func (p *MQTTPublisher) Topic(suffix string) string {
	return p.topic + "/" + suffix
}

func (p *MQTTPublisher) publish(suffix string, retained bool, body []byte, err error) {
	if err != nil {
		p.logger.WithError(err).Warn("payload encoding failed")
		return
	}
	topic := p.Topic(suffix)
	token := p.client.Publish(topic, p.qos, retained, body)
	// callbacks may run on the polling worker, so never block on the broker
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.logger.WithField("topic", topic).Warn("publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			p.logger.WithError(err).WithField("topic", topic).Warn("publish failed")
		}
	}()
}

func (p *MQTTPublisher) OnMeasurement(m measure.Measurement) {
	body, err := Measurement(p.session(), m)
	p.publish(TopicMeasurement, false, body, err)
}

func (p *MQTTPublisher) OnError(e error) {
	body, err := Error(p.session(), p.now(), e)
	p.publish(TopicError, false, body, err)
}

func (p *MQTTPublisher) OnStateChange(from, to acquisition.State) {
	body, err := json.Marshal(StatePayload{
		Session: sessionString(p.session()),
		From:    from.String(),
		State:   to.String(),
	})
	p.publish(TopicState, true, body, err)
}

func (p *MQTTPublisher) OnStatus(s lidar.Status) {
	body, err := json.Marshal(StatusPayload{
		Session:          sessionString(p.session()),
		Temperature:      s.Temperature,
		Voltage:          s.Voltage,
		VoltageDefaulted: s.VoltageDefaulted,
	})
	p.publish(TopicStatus, false, body, err)
}

func (p *MQTTPublisher) OnLaser(bool) {}

// Dial connects to the configured broker
func Dial(cfg config.MQTTConfig) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return client, nil
}
