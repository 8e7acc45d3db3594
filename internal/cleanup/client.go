// Package cleanup removes network interfaces left behind in a security group when a stack is deleted.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

const errCodeInterfaceNotFound = "InvalidNetworkInterfaceID.NotFound"

// EC2API defines the EC2 operations used for interface cleanup
type EC2API interface {
	DescribeNetworkInterfaces(ctx context.Context, params *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
	DeleteNetworkInterface(ctx context.Context, params *ec2.DeleteNetworkInterfaceInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error)
}

// InterfaceAPI is the capability set the cleanup action reconciles against
type InterfaceAPI interface {
	ListMatchingInterfaces(ctx context.Context, selector string) ([]string, error)
	DeleteInterface(ctx context.Context, id string) error
}

// InterfaceClient lists and deletes detached network interfaces through EC2
type InterfaceClient struct {
	api    EC2API
	logger *slog.Logger
}

// NewInterfaceClient creates an InterfaceClient from an AWS config
func NewInterfaceClient(cfg aws.Config, logger *slog.Logger) *InterfaceClient {
	return NewInterfaceClientWithAPI(ec2.NewFromConfig(cfg), logger)
}

// NewInterfaceClientWithAPI creates an InterfaceClient with a custom EC2 client
func NewInterfaceClientWithAPI(api EC2API, logger *slog.Logger) *InterfaceClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterfaceClient{
		api:    api,
		logger: logger,
	}
}

// ListMatchingInterfaces returns the IDs of available (detached) interfaces in the security group
func (c *InterfaceClient) ListMatchingInterfaces(ctx context.Context, selector string) ([]string, error) {
	paginator := ec2.NewDescribeNetworkInterfacesPaginator(c.api, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-id"), Values: []string{selector}},
			{Name: aws.String("status"), Values: []string{string(ec2types.NetworkInterfaceStatusAvailable)}},
		},
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network interfaces for %s: %w", selector, err)
		}
		for _, eni := range page.NetworkInterfaces {
			if id := aws.ToString(eni.NetworkInterfaceId); id != "" {
				ids = append(ids, id)
			}
		}
	}

	c.logger.DebugContext(ctx, "listed network interfaces",
		slog.String("selector", selector),
		slog.Int("count", len(ids)),
	)

	return ids, nil
}

// DeleteInterface deletes one interface. An interface that is already gone counts as deleted.
func (c *InterfaceClient) DeleteInterface(ctx context.Context, id string) error {
	_, err := c.api.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
		NetworkInterfaceId: aws.String(id),
	})
	if err != nil {
		if isNotFound(err) {
			c.logger.DebugContext(ctx, "network interface already deleted", slog.String("eni_id", id))
			return nil
		}
		return fmt.Errorf("failed to delete network interface %s: %w", id, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeInterfaceNotFound
}
