package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	calls              []string
}

func (m *mockAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls = append(m.calls, aws.ToString(params.SecretId))
	return m.GetSecretValueFunc(ctx, params, optFns...)
}

func TestRef(t *testing.T) {
	tests := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"awssm(ci/p12)", "ci/p12", true},
		{"  awssm( ci/key ) ", "ci/key", true},
		{"plain-value", "", false},
		{"prefix awssm(x)", "", false},
	}
	for _, tt := range tests {
		id, ok := Ref(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.wantID, id, tt.in)
	}
}

func TestResolveReplacesReferences(t *testing.T) {
	api := &mockAPI{
		GetSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			switch aws.ToString(params.SecretId) {
			case "ci/password":
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("hunter22")}, nil
			case "ci/key":
				return &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("binary-key")}, nil
			}
			return nil, errors.New("unexpected id")
		},
	}

	password := "awssm(ci/password)"
	again := "awssm(ci/password)"
	key := "awssm(ci/key)"
	literal := "not-a-ref"

	r := &Resolver{API: api}
	require.NoError(t, r.Resolve(context.Background(), &password, &again, &key, &literal, nil))

	assert.Equal(t, "hunter22", password)
	assert.Equal(t, "hunter22", again)
	assert.Equal(t, "binary-key", key)
	assert.Equal(t, "not-a-ref", literal)
	assert.Equal(t, []string{"ci/password", "ci/key"}, api.calls, "each id is fetched once")
}

func TestResolveWithoutReferencesNeedsNoClient(t *testing.T) {
	v := "plain"
	r := &Resolver{}
	require.NoError(t, r.Resolve(context.Background(), &v))
	assert.Nil(t, r.API)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		out     *secretsmanager.GetSecretValueOutput
		err     error
		wantIs  error
		wantMsg string
	}{
		{
			name:   "not found",
			err:    &types.ResourceNotFoundException{Message: aws.String("missing")},
			wantIs: ErrSecretNotFound,
		},
		{
			name:   "empty",
			out:    &secretsmanager.GetSecretValueOutput{SecretString: aws.String("")},
			wantIs: ErrSecretEmpty,
		},
		{
			name:    "access denied",
			err:     &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"},
			wantMsg: "AccessDeniedException: nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{
				GetSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					return tt.out, tt.err
				},
			}
			v := "awssm(ci/thing)"
			err := (&Resolver{API: api}).Resolve(context.Background(), &v)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, "awssm(ci/thing)", v, "field left untouched on failure")
		})
	}
}
