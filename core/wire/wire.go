// Package wire implements the JSON datagram format spoken between
// NextLease clients and the server.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize is the maximum size of a datagram read from the network
const MaxMessageSize = 4096

// Command is the operation requested by a client
type Command string

// Status is the result reported back to a client
type Status string

const (
	// CommandRequestIP asks the server for an address lease
	CommandRequestIP Command = "REQUEST_IP"

	// CommandUpdateLease asks the server to renew an existing lease
	CommandUpdateLease Command = "UPDATE_LEASE"
)

const (
	// StatusAssigned is sent if the client holds an address lease
	StatusAssigned Status = "ASSIGNED_IP"

	// StatusNotAssigned is sent if no address could be leased or renewed
	StatusNotAssigned Status = "NO_IP_ASSIGNED"

	// StatusLeaseUpdated is sent if a lease has been renewed
	StatusLeaseUpdated Status = "LEASE_UPDATED"
)

var (
	// ErrMalformedMessage is returned if a datagram could not be decoded.
	// Malformed messages are never answered
	ErrMalformedMessage = errors.New("malformed message")
)

// Request is a message sent by a client
type Request struct {
	Command    Command `json:"command"`
	MACAddress string  `json:"mac_address"`
}

// Response is a message sent by the server
type Response struct {
	Status     Status `json:"status"`
	AssignedIP string `json:"assigned_ip,omitempty"`
	LeaseTime  int    `json:"lease_time,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Assigned returns an ASSIGNED_IP response
func Assigned(ip string, leaseSeconds int) Response {
	return Response{
		Status:     StatusAssigned,
		AssignedIP: ip,
		LeaseTime:  leaseSeconds,
	}
}

// NotAssigned returns a NO_IP_ASSIGNED response. The message is omitted
// from the encoded response if empty
func NotAssigned(msg string) Response {
	return Response{
		Status:  StatusNotAssigned,
		Message: msg,
	}
}

// LeaseUpdated returns a LEASE_UPDATED response
func LeaseUpdated() Response {
	return Response{Status: StatusLeaseUpdated}
}

// MarshalJSON implements json.Marshaler. ASSIGNED_IP responses always
// carry the lease_time field, even if no lease time is left
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Status == StatusAssigned {
		return json.Marshal(struct {
			Status     Status `json:"status"`
			AssignedIP string `json:"assigned_ip"`
			LeaseTime  int    `json:"lease_time"`
		}{r.Status, r.AssignedIP, r.LeaseTime})
	}

	type plain Response
	return json.Marshal(plain(r))
}

// DecodeRequest parses a request datagram. Field names are matched
// exactly. Any error returned wraps ErrMalformedMessage
func DecodeRequest(payload []byte) (*Request, error) {
	payload = bytes.TrimSpace(payload)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err.Error())
	}

	command, err := stringField(fields, "command")
	if err != nil {
		return nil, err
	}

	mac, err := stringField(fields, "mac_address")
	if err != nil {
		return nil, err
	}

	return &Request{
		Command:    Command(command),
		MACAddress: mac,
	}, nil
}

// stringField returns the non-empty string value stored under key
func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedMessage, key)
	}

	var val string
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrMalformedMessage, key, err.Error())
	}

	if val == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedMessage, key)
	}

	return val, nil
}

// EncodeRequest encodes a request datagram
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeResponse parses a response datagram
func DecodeResponse(payload []byte) (*Response, error) {
	var res Response
	if err := json.Unmarshal(bytes.TrimSpace(payload), &res); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedMessage, err.Error())
	}

	if res.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedMessage)
	}

	return &res, nil
}

// EncodeResponse encodes a response datagram
func EncodeResponse(res *Response) ([]byte, error) {
	return json.Marshal(res)
}
