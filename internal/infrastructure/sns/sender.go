package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/catalog-reviews/internal/config"
)

// publisher is the subset of the SNS client the notifier uses.
type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicNotifier publishes confirmation codes to an SNS topic. A mail
// delivery subscriber (Lambda, SES integration) fans them out to users.
type TopicNotifier struct {
	client   publisher
	topicARN string
}

type codeMessage struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Code  string `json:"code"`
}

func NewTopicNotifier(cfg *config.Config) (*TopicNotifier, error) {
	if cfg.SNSTopicARN == "" {
		return nil, errors.New("SNS_TOPIC_ARN is not set")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SNSRegion)}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &TopicNotifier{client: sns.NewFromConfig(awsCfg, clientOpts...), topicARN: cfg.SNSTopicARN}, nil
}

func (n *TopicNotifier) Notify(ctx context.Context, email, code string) error {
	body, err := json.Marshal(codeMessage{Type: "confirmation_code", Email: email, Code: code})
	if err != nil {
		return err
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("Your confirmation code"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"email": {DataType: aws.String("String"), StringValue: aws.String(email)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish confirmation code: %w", err)
	}
	return nil
}
