package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParameterGetter is the subset of the SSM client used to resolve secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveDSN replaces Database.DSN with the value of the SSM parameter
// named by Database.DSNParameter. It is a no-op when no parameter is set.
func ResolveDSN(ctx context.Context, cfg *DatabaseConfig, client ParameterGetter) error {
	if cfg.DSNParameter == "" {
		return nil
	}
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		client = ssm.NewFromConfig(awsCfg)
	}
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(cfg.DSNParameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get parameter %s: %w", cfg.DSNParameter, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return fmt.Errorf("parameter %s is empty", cfg.DSNParameter)
	}
	cfg.DSN = aws.ToString(out.Parameter.Value)
	return nil
}
