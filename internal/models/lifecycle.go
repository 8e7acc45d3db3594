package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
)

var (
	// ErrUnknownRequestType is returned when the orchestrator sends a phase we do not understand
	ErrUnknownRequestType = errors.New("unknown request type")
	// ErrMissingField is returned when a required correlation field is absent
	ErrMissingField = errors.New("missing required field")
)

// IsValidRequestType checks if the request type is one of Create, Update or Delete
func IsValidRequestType(rt cfn.RequestType) bool {
	switch rt {
	case cfn.RequestCreate, cfn.RequestUpdate, cfn.RequestDelete:
		return true
	default:
		return false
	}
}

// LifecycleEvent is the validated view of one CloudFormation custom resource request.
// It is consumed once per invocation and never persisted.
type LifecycleEvent struct {
	RequestType           cfn.RequestType
	StackID               string
	RequestID             string
	LogicalResourceID     string
	ResponseURL           string
	ResourceType          string
	PhysicalResourceID    string
	ResourceProperties    map[string]interface{}
	OldResourceProperties map[string]interface{}
}

// NewLifecycleEvent copies the fields of a raw cfn.Event
func NewLifecycleEvent(event cfn.Event) *LifecycleEvent {
	props := event.ResourceProperties
	if props == nil {
		props = map[string]interface{}{}
	}

	return &LifecycleEvent{
		RequestType:           event.RequestType,
		StackID:               event.StackID,
		RequestID:             event.RequestID,
		LogicalResourceID:     event.LogicalResourceID,
		ResponseURL:           event.ResponseURL,
		ResourceType:          event.ResourceType,
		PhysicalResourceID:    event.PhysicalResourceID,
		ResourceProperties:    props,
		OldResourceProperties: event.OldResourceProperties,
	}
}

// Validate checks the fields the handler needs to reconcile and answer the request
func (e *LifecycleEvent) Validate() error {
	if !IsValidRequestType(e.RequestType) {
		return fmt.Errorf("%w: %q", ErrUnknownRequestType, e.RequestType)
	}

	var missing []string
	if e.StackID == "" {
		missing = append(missing, "StackId")
	}
	if e.RequestID == "" {
		missing = append(missing, "RequestId")
	}
	if e.LogicalResourceID == "" {
		missing = append(missing, "LogicalResourceId")
	}
	if e.ResponseURL == "" {
		missing = append(missing, "ResponseURL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return nil
}

// Status represents the outcome reported back to the orchestrator
type Status string

const (
	// StatusSuccess lets the stack operation proceed
	StatusSuccess Status = Status(cfn.StatusSuccess)
	// StatusFailed halts the stack operation with the given reason
	StatusFailed Status = Status(cfn.StatusFailed)
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Result is the outcome of one invocation. Exactly one Result is signaled per LifecycleEvent.
type Result struct {
	Status             Status
	Reason             string
	PhysicalResourceID string
	Data               map[string]interface{}
}

// Succeeded creates a SUCCESS result. A nil data map becomes an empty one.
func Succeeded(data map[string]interface{}) Result {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Result{
		Status: StatusSuccess,
		Data:   data,
	}
}

// Failed creates a FAILED result carrying the reason in both Reason and Data.Error
func Failed(reason string) Result {
	if reason == "" {
		reason = "unknown error"
	}
	return Result{
		Status: StatusFailed,
		Reason: reason,
		Data: map[string]interface{}{
			"Error": reason,
		},
	}
}

// Response is the JSON body PUT to the pre-signed ResponseURL
type Response struct {
	Status             Status                 `json:"Status"`
	Reason             string                 `json:"Reason"`
	PhysicalResourceID string                 `json:"PhysicalResourceId"`
	StackID            string                 `json:"StackId"`
	RequestID          string                 `json:"RequestId"`
	LogicalResourceID  string                 `json:"LogicalResourceId"`
	Data               map[string]interface{} `json:"Data"`
}

// NewResponse builds the callback body, echoing the event's correlation identifiers verbatim
func NewResponse(event *LifecycleEvent, result Result) Response {
	data := result.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	return Response{
		Status:             result.Status,
		Reason:             result.Reason,
		PhysicalResourceID: result.PhysicalResourceID,
		StackID:            event.StackID,
		RequestID:          event.RequestID,
		LogicalResourceID:  event.LogicalResourceID,
		Data:               data,
	}
}
