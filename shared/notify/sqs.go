package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"weather-agent/internal/models"
	"weather-agent/shared/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDispatcher enqueues notifications for a downstream delivery worker
type SQSDispatcher struct {
	client   SQSSender
	queueURL string
}

func NewSQSDispatcher(client SQSSender, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{client: client, queueURL: queueURL}
}

// NewSQSDispatcherFromConfig loads AWS credentials from the default chain
func NewSQSDispatcherFromConfig(ctx context.Context, cfg config.SQSConfig) (*SQSDispatcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSQSDispatcher(sqs.NewFromConfig(awsCfg), cfg.QueueURL), nil
}

func (d *SQSDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("sqs: failed to marshal notification: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.Kind),
			},
			"severity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Severity)),
			},
		},
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs: failed to send notification %s: %w", n.ID, err)
	}
	return nil
}
