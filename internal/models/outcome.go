package models

import (
	"time"

	"github.com/aws/aws-lambda-go/cfn"
)

// Outcome is the notification published for every signaled result
type Outcome struct {
	Stage              Stage                  `json:"stage" dynamodbav:"stage"`
	Action             string                 `json:"action" dynamodbav:"action"`
	RequestType        cfn.RequestType        `json:"request_type" dynamodbav:"request_type"`
	StackID            string                 `json:"stack_id" dynamodbav:"stack_id"`
	LogicalResourceID  string                 `json:"logical_resource_id" dynamodbav:"logical_resource_id"`
	RequestID          string                 `json:"request_id" dynamodbav:"request_id"`
	PhysicalResourceID string                 `json:"physical_resource_id" dynamodbav:"physical_resource_id"`
	Status             Status                 `json:"status" dynamodbav:"status"`
	Reason             string                 `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty" dynamodbav:"data,omitempty"`
	CreatedDate        time.Time              `json:"created_date" dynamodbav:"created_date"`
}

// NewOutcome creates an Outcome for the given event and result
func NewOutcome(stage Stage, action string, event *LifecycleEvent, result Result) *Outcome {
	return &Outcome{
		Stage:              stage,
		Action:             action,
		RequestType:        event.RequestType,
		StackID:            event.StackID,
		LogicalResourceID:  event.LogicalResourceID,
		RequestID:          event.RequestID,
		PhysicalResourceID: result.PhysicalResourceID,
		Status:             result.Status,
		Reason:             result.Reason,
		Data:               result.Data,
		CreatedDate:        time.Now().UTC(),
	}
}
