package publish

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
)

// DefaultRegion is used when neither the config nor AWS_REGION names one.
const DefaultRegion = "us-east-1"

// NewClient creates an S3 client for cfg. Credentials come from env,
// usually the project's .env merged over the process environment:
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and optionally
// AWS_SESSION_TOKEN.
func NewClient(cfg config.PublishConfig, env map[string]string) *s3.Client {
	lookup := func(key string) string {
		if v, ok := env[key]; ok && v != "" {
			return v
		}
		return os.Getenv(key)
	}

	region := cfg.Region
	if region == "" {
		region = lookup("AWS_REGION")
	}
	if region == "" {
		region = DefaultRegion
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			id, secret := lookup("AWS_ACCESS_KEY_ID"), lookup("AWS_SECRET_ACCESS_KEY")
			if id == "" || secret == "" {
				return aws.Credentials{}, errors.New("E150").
					WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set").
					WithSuggestion("Add them to .env or the environment")
			}
			return aws.Credentials{
				AccessKeyID:     id,
				SecretAccessKey: secret,
				SessionToken:    lookup("AWS_SESSION_TOKEN"),
				Source:          "statikapi",
			}, nil
		})),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}
