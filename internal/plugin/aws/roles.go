package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/internal/plugin"
)

// ListRoles returns every IAM role under pathPrefix.
// IAM pages with Marker/IsTruncated rather than NextToken.
func (b *Backend) ListRoles(ctx context.Context, pathPrefix string) ([]plugin.Role, error) {
	return lifecycle.List(ctx, func(ctx context.Context, token string) (lifecycle.Page[plugin.Role], error) {
		input := &iam.ListRolesInput{}
		if pathPrefix != "" {
			input.PathPrefix = aws.String(pathPrefix)
		}
		if token != "" {
			input.Marker = aws.String(token)
		}

		output, err := b.iamClient.ListRoles(ctx, input)
		if err != nil {
			return lifecycle.Page[plugin.Role]{}, fmt.Errorf("list roles: %w", err)
		}

		page := lifecycle.Page[plugin.Role]{Items: make([]plugin.Role, 0, len(output.Roles))}
		for _, role := range output.Roles {
			page.Items = append(page.Items, convertRole(role))
		}
		if output.IsTruncated {
			page.NextToken = aws.ToString(output.Marker)
		}
		return page, nil
	})
}

func convertRole(role iamtypes.Role) plugin.Role {
	return plugin.Role{
		Name:      aws.ToString(role.RoleName),
		ARN:       aws.ToString(role.Arn),
		Path:      aws.ToString(role.Path),
		CreatedAt: aws.ToTime(role.CreateDate),
	}
}
