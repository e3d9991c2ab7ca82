package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/logkeep/internal/plugin"
)

type mockIAMClient struct {
	ListRolesFunc func(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
}

func (m *mockIAMClient) ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
	if m.ListRolesFunc != nil {
		return m.ListRolesFunc(ctx, params, optFns...)
	}
	return &iam.ListRolesOutput{}, nil
}

type mockSTSClient struct {
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return &sts.GetCallerIdentityOutput{}, nil
}

func TestBackendName(t *testing.T) {
	b := &Backend{region: "eu-west-1"}
	assert.Equal(t, "aws", b.Name())
	assert.Equal(t, "eu-west-1", b.Region())
}

func TestBackendSatisfiesPluginInterfaces(t *testing.T) {
	var b any = &Backend{}

	_, ok := b.(plugin.Backend)
	assert.True(t, ok)
	_, ok = b.(plugin.AccountResolver)
	assert.True(t, ok)
	_, ok = b.(plugin.RoleLister)
	assert.True(t, ok)
}

func TestAccountID(t *testing.T) {
	b := &Backend{stsClient: &mockSTSClient{
		GetCallerIdentityFunc: func(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
		},
	}}

	assert.Equal(t, "123456789012", b.AccountID(context.Background()))
}

func TestAccountID_Unknown(t *testing.T) {
	failing := &Backend{stsClient: &mockSTSClient{
		GetCallerIdentityFunc: func(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return nil, errors.New("no credentials")
		},
	}}
	empty := &Backend{stsClient: &mockSTSClient{}}

	assert.Equal(t, "unknown", failing.AccountID(context.Background()))
	assert.Equal(t, "unknown", empty.AccountID(context.Background()))
}

func TestListRoles_Pagination(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	callCount := 0
	mock := &mockIAMClient{
		ListRolesFunc: func(_ context.Context, params *iam.ListRolesInput, _ ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
			callCount++
			assert.Equal(t, "/service-role/", aws.ToString(params.PathPrefix))
			if callCount == 1 {
				assert.Nil(t, params.Marker)
				return &iam.ListRolesOutput{
					Roles:       []iamtypes.Role{{RoleName: aws.String("writer"), Arn: aws.String("arn:aws:iam::123456789012:role/writer"), Path: aws.String("/service-role/"), CreateDate: aws.Time(created)}},
					IsTruncated: true,
					Marker:      aws.String("m1"),
				}, nil
			}
			assert.Equal(t, "m1", aws.ToString(params.Marker))
			return &iam.ListRolesOutput{
				Roles: []iamtypes.Role{{RoleName: aws.String("reader")}},
				// Marker is ignored once IsTruncated is false
				Marker: aws.String("stale"),
			}, nil
		},
	}
	b := &Backend{iamClient: mock}

	roles, err := b.ListRoles(context.Background(), "/service-role/")

	require.NoError(t, err)
	assert.Equal(t, 2, callCount)
	require.Len(t, roles, 2)
	assert.Equal(t, "writer", roles[0].Name)
	assert.Equal(t, created, roles[0].CreatedAt)
	assert.Equal(t, "reader", roles[1].Name)
}

func TestListRoles_Error(t *testing.T) {
	mock := &mockIAMClient{
		ListRolesFunc: func(_ context.Context, _ *iam.ListRolesInput, _ ...func(*iam.Options)) (*iam.ListRolesOutput, error) {
			return nil, errors.New("access denied")
		},
	}
	b := &Backend{iamClient: mock}

	_, err := b.ListRoles(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list roles")
	assert.Contains(t, err.Error(), "access denied")
}
