package dispatch

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/jrzesz33/serverless_kafka/internal/models"
)

// failedAction answers every lifecycle phase with a fixed error
type failedAction struct {
	name string
	err  error
}

// NewFailedAction returns an Action that fails every event with err.
// It stands in for an action whose dependencies could not be built at start-up.
func NewFailedAction(name string, err error) Action {
	return &failedAction{name: name, err: err}
}

func (f *failedAction) Name() string {
	return f.name
}

func (f *failedAction) Handles(cfn.RequestType) bool {
	return true
}

func (f *failedAction) Run(context.Context, *models.LifecycleEvent) (map[string]interface{}, error) {
	return nil, f.err
}
