package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// eventFixture mirrors the CloudFormation request fields in YAML
type eventFixture struct {
	RequestType           string                 `yaml:"RequestType"`
	ResponseURL           string                 `yaml:"ResponseURL"`
	ResourceType          string                 `yaml:"ResourceType"`
	StackID               string                 `yaml:"StackId"`
	RequestID             string                 `yaml:"RequestId"`
	LogicalResourceID     string                 `yaml:"LogicalResourceId"`
	PhysicalResourceID    string                 `yaml:"PhysicalResourceId"`
	ResourceProperties    map[string]interface{} `yaml:"ResourceProperties"`
	OldResourceProperties map[string]interface{} `yaml:"OldResourceProperties"`
}

// loadEvent reads a fixture file and fills in the identifiers a local run does not care about
func loadEvent(path string) (cfn.Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfn.Event{}, fmt.Errorf("failed to read event file: %w", err)
	}
	return parseEvent(raw)
}

func parseEvent(raw []byte) (cfn.Event, error) {
	var fixture eventFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return cfn.Event{}, fmt.Errorf("failed to parse event YAML: %w", err)
	}

	if fixture.RequestID == "" {
		fixture.RequestID = uuid.NewString()
	}
	if fixture.StackID == "" {
		fixture.StackID = "arn:aws:cloudformation:local:000000000000:stack/local/" + uuid.NewString()
	}
	if fixture.LogicalResourceID == "" {
		fixture.LogicalResourceID = "LocalResource"
	}

	return cfn.Event{
		RequestType:           cfn.RequestType(fixture.RequestType),
		ResponseURL:           fixture.ResponseURL,
		ResourceType:          fixture.ResourceType,
		StackID:               fixture.StackID,
		RequestID:             fixture.RequestID,
		LogicalResourceID:     fixture.LogicalResourceID,
		PhysicalResourceID:    fixture.PhysicalResourceID,
		ResourceProperties:    fixture.ResourceProperties,
		OldResourceProperties: fixture.OldResourceProperties,
	}, nil
}

// callbackReceiver stands in for the pre-signed ResponseURL during local runs
type callbackReceiver struct {
	url      string
	server   *http.Server
	received chan []byte
}

func startCallbackReceiver() (*callbackReceiver, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback receiver: %w", err)
	}

	r := &callbackReceiver{
		url:      "http://" + listener.Addr().String() + "/callback",
		received: make(chan []byte, 1),
	}
	r.server = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			select {
			case r.received <- body:
			default:
			}
			w.WriteHeader(http.StatusOK)
		}),
	}

	go func() {
		_ = r.server.Serve(listener)
	}()

	return r, nil
}

func (r *callbackReceiver) Close() error {
	return r.server.Close()
}
