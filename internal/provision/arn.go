package provision

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

// TopicARN derives the IAM resource ARN of a topic from its cluster ARN:
// arn:aws:kafka:<region>:<account>:cluster/<name>/<uuid> becomes
// arn:aws:kafka:<region>:<account>:topic/<name>/<uuid>/<topic>.
func TopicARN(clusterARN, topic string) (string, error) {
	parsed, err := arn.Parse(clusterARN)
	if err != nil {
		return "", fmt.Errorf("invalid cluster ARN %q: %w", clusterARN, err)
	}

	parts := strings.Split(parsed.Resource, "/")
	if len(parts) != 3 || parts[0] != "cluster" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("cluster ARN %q does not name a cluster/<name>/<uuid> resource", clusterARN)
	}

	parsed.Resource = strings.Join([]string{"topic", parts[1], parts[2], topic}, "/")
	return parsed.String(), nil
}
