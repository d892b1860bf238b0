// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package lidar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultVoltage is reported when a status reply carries no voltage
const DefaultVoltage = 3.0

// Reply parsing patterns
var (
	distancePattern    = regexp.MustCompile(`:?\s*(\d+\.\d+)m,(\d+)`)
	temperaturePattern = regexp.MustCompile(`(-?\d+\.\d*)['°]?C`)
	qualifiedCPattern  = regexp.MustCompile(`['°]C`)
	voltagePattern     = regexp.MustCompile(`(\d+\.\d*)V`)
)

// ProtocolError reports a reply whose shape was not recognised
type ProtocolError struct {
	Reason   string
	Response string
}

func (e *ProtocolError) Error() string {
	if e.Response == "" {
		return "lidar protocol: " + e.Reason
	}
	return fmt.Sprintf("lidar protocol: %s (response %q)", e.Reason, e.Response)
}

// DeviceError reports an Erxx code sent by the sensor
type DeviceError struct {
	Code    string
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("lidar device %s: %s", e.Code, e.Message)
}

// Distance is one range reading
type Distance struct {
	Meters  float64
	Quality int
}

// Status is the sensor health report
type Status struct {
	Temperature float64 // °C
	Voltage     float64 // V

	// VoltageDefaulted is set when the reply carried no voltage and
	// DefaultVoltage was substituted.
	VoltageDefaulted bool
}

// ReplyKind tags the variant held by a Reply
type ReplyKind int

const (
	ReplyUnparseable ReplyKind = iota
	ReplyDistance
	ReplyStatus
	ReplyDeviceError
	ReplyEmpty
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyDistance:
		return "distance"
	case ReplyStatus:
		return "status"
	case ReplyDeviceError:
		return "device_error"
	case ReplyEmpty:
		return "empty"
	default:
		return "unparseable"
	}
}

// Reply is a classified sensor reply. Exactly one of Distance, Status or
// Err is meaningful, according to Kind.
type Reply struct {
	Kind     ReplyKind
	Raw      string
	Distance Distance
	Status   Status
	Err      error
}

// Classify sorts a reply into one variant. Checks run in a fixed order:
// device error token, status shape, distance, otherwise unparseable.
func Classify(text string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Kind: ReplyEmpty, Raw: text, Err: &ProtocolError{Reason: "no response"}}
	}

	if err := findDeviceError(text); err != nil {
		return Reply{Kind: ReplyDeviceError, Raw: text, Err: err}
	}

	if isStatusShape(text) {
		status, err := ParseStatus(text)
		if err != nil {
			return Reply{Kind: ReplyUnparseable, Raw: text, Err: err}
		}
		return Reply{Kind: ReplyStatus, Raw: text, Status: status}
	}

	if d, ok := matchDistance(text); ok {
		return Reply{Kind: ReplyDistance, Raw: text, Distance: d}
	}

	return Reply{Kind: ReplyUnparseable, Raw: text, Err: &ProtocolError{Reason: "unparseable", Response: text}}
}

func findDeviceError(text string) *DeviceError {
	for _, e := range errorTable {
		if strings.Contains(text, e.Code) {
			return &DeviceError{Code: e.Code, Message: e.Message}
		}
	}
	return nil
}

// isStatusShape matches a qualified temperature together with a V
func isStatusShape(text string) bool {
	return qualifiedCPattern.MatchString(text) && strings.Contains(text, "V")
}

func matchDistance(text string) (Distance, bool) {
	m := distancePattern.FindStringSubmatch(text)
	if m == nil {
		return Distance{}, false
	}
	meters, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Distance{}, false
	}
	quality, err := strconv.Atoi(m[2])
	if err != nil {
		return Distance{}, false
	}
	return Distance{Meters: meters, Quality: quality}, true
}

// ParseDistance extracts a range reading from a measurement reply. Any
// status-shaped reply is rejected as such, whether or not its fields parse.
func ParseDistance(text string) (Distance, error) {
	reply := Classify(text)
	switch {
	case reply.Kind == ReplyDistance:
		return reply.Distance, nil
	case reply.Kind == ReplyStatus,
		reply.Kind == ReplyUnparseable && isStatusShape(text):
		return Distance{}, &ProtocolError{Reason: "status response received where distance expected", Response: text}
	default:
		return Distance{}, reply.Err
	}
}

// ParseStatus extracts temperature and voltage from a status reply. A
// missing voltage is tolerated and reported as DefaultVoltage.
func ParseStatus(text string) (Status, error) {
	if strings.TrimSpace(text) == "" {
		return Status{}, &ProtocolError{Reason: "no status response"}
	}
	if err := findDeviceError(text); err != nil {
		return Status{}, err
	}

	m := temperaturePattern.FindStringSubmatch(text)
	if m == nil {
		return Status{}, &ProtocolError{Reason: "could not extract temperature", Response: text}
	}
	temp, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Status{}, &ProtocolError{Reason: "invalid temperature", Response: text}
	}

	status := Status{Temperature: temp, Voltage: DefaultVoltage, VoltageDefaulted: true}
	if v := voltagePattern.FindStringSubmatch(text); v != nil {
		if volts, err := strconv.ParseFloat(v[1], 64); err == nil {
			status.Voltage = volts
			status.VoltageDefaulted = false
		}
	}
	return status, nil
}

// IsAcknowledged reports whether a laser reply carries the OK token
func IsAcknowledged(text string) bool {
	return strings.Contains(text, AckToken)
}
