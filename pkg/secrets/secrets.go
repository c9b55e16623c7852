// Package secrets resolves awssm(<secret-id>) references in configuration
// values against AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrSecretNotFound is returned when the referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretEmpty is returned when the referenced secret has no string value.
	ErrSecretEmpty = errors.New("secret is empty")
)

var refPattern = regexp.MustCompile(`^\s*awssm\(([^)]+)\)\s*$`)

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Ref returns the secret id referenced by value, if value is a reference.
func Ref(value string) (string, bool) {
	m := refPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Resolver replaces references with secret values. The AWS client is only
// created when at least one reference needs resolving.
type Resolver struct {
	// API overrides the client built from the default AWS configuration.
	API ManagerAPI
	// Region, when set, overrides the region from the environment.
	Region string
}

// Resolve rewrites every field holding a reference in place.
func (r *Resolver) Resolve(ctx context.Context, fields ...*string) error {
	var pending []*string
	for _, f := range fields {
		if f == nil {
			continue
		}
		if _, ok := Ref(*f); ok {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	if r.API == nil {
		api, err := r.newClient(ctx)
		if err != nil {
			return err
		}
		r.API = api
	}

	cache := make(map[string]string)
	for _, f := range pending {
		id, _ := Ref(*f)
		if v, ok := cache[id]; ok {
			*f = v
			continue
		}
		v, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		cache[id] = v
		*f = v
	}
	return nil
}

func (r *Resolver) newClient(ctx context.Context) (ManagerAPI, error) {
	var opts []func(*config.LoadOptions) error
	if r.Region != "" {
		opts = append(opts, config.WithRegion(r.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func (r *Resolver) get(ctx context.Context, id string) (string, error) {
	out, err := r.API.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%s: %w", id, ErrSecretNotFound)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("failed to read secret %s: %s: %s", id, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("failed to read secret %s: %w", id, err)
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("%s: %w", id, ErrSecretEmpty)
}
