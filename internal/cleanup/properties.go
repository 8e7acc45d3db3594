package cleanup

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ErrNoSelector is returned when neither the resource nor the environment names a security group
var ErrNoSelector = errors.New("no security group selector configured")

// Properties are the ResourceProperties understood by the cleanup resource.
// Selector wins over SecurityGroupID; when both are empty the configured default is used.
type Properties struct {
	Selector        string `mapstructure:"selector"`
	SecurityGroupID string `mapstructure:"SecurityGroupId"`
}

// DecodeProperties reads Properties from the raw ResourceProperties map
func DecodeProperties(raw map[string]interface{}, defaultSelector string) (Properties, error) {
	var props Properties

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &props,
	})
	if err != nil {
		return props, fmt.Errorf("failed to create properties decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return props, fmt.Errorf("invalid resource properties: %w", err)
	}

	if props.Selector == "" {
		props.Selector = props.SecurityGroupID
	}
	if props.Selector == "" {
		props.Selector = defaultSelector
	}
	if props.Selector == "" {
		return props, ErrNoSelector
	}

	return props, nil
}
