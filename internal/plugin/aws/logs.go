package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

// CloudWatch Logs error codes that map onto lifecycle outcomes.
const (
	codeNotFound      = "ResourceNotFoundException"
	codeAlreadyExists = "ResourceAlreadyExistsException"
	codeAborted       = "OperationAbortedException"
)

// classify wraps known API errors with the lifecycle sentinels so callers
// can match them with errors.Is. Anything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case codeNotFound:
		return fmt.Errorf("%w: %w", lifecycle.ErrNotFound, err)
	case codeAlreadyExists:
		return fmt.Errorf("%w: %w", lifecycle.ErrAlreadyExists, err)
	case codeAborted:
		return fmt.Errorf("%w: %w", lifecycle.ErrConflict, err)
	default:
		return err
	}
}

// outcome classifies a mutating call. Unclassified errors keep their
// original form so callers see the SDK error unmodified.
func outcome(err error) lifecycle.Outcome {
	o := lifecycle.Classify(classify(err))
	if o.Kind == lifecycle.OutcomeFailed {
		return lifecycle.Failed(err)
	}
	return o
}

// CreateGroup issues CreateLogGroup.
func (b *Backend) CreateGroup(ctx context.Context, name string) lifecycle.Outcome {
	_, err := b.logsClient.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})
	return outcome(err)
}

// CreateStream issues CreateLogStream.
func (b *Backend) CreateStream(ctx context.Context, group, stream string) lifecycle.Outcome {
	_, err := b.logsClient.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	})
	return outcome(err)
}

// DeleteGroup issues DeleteLogGroup.
func (b *Backend) DeleteGroup(ctx context.Context, name string) lifecycle.Outcome {
	_, err := b.logsClient.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(name),
	})
	return outcome(err)
}

// DeleteStream issues DeleteLogStream.
func (b *Backend) DeleteStream(ctx context.Context, group, stream string) lifecycle.Outcome {
	_, err := b.logsClient.DeleteLogStream(ctx, &cloudwatchlogs.DeleteLogStreamInput{
		LogGroupName:  aws.String(group),
		LogStreamName: aws.String(stream),
	})
	return outcome(err)
}

// ListGroups returns one page of DescribeLogGroups.
func (b *Backend) ListGroups(ctx context.Context, prefix, token string) (lifecycle.Page[logresource.Group], error) {
	input := &cloudwatchlogs.DescribeLogGroupsInput{}
	if prefix != "" {
		input.LogGroupNamePrefix = aws.String(prefix)
	}
	if token != "" {
		input.NextToken = aws.String(token)
	}

	output, err := b.logsClient.DescribeLogGroups(ctx, input)
	if err != nil {
		return lifecycle.Page[logresource.Group]{}, fmt.Errorf("describe log groups: %w", classify(err))
	}

	page := lifecycle.Page[logresource.Group]{
		Items:     make([]logresource.Group, 0, len(output.LogGroups)),
		NextToken: aws.ToString(output.NextToken),
	}
	for _, lg := range output.LogGroups {
		page.Items = append(page.Items, convertLogGroup(lg))
	}
	return page, nil
}

// ListStreams returns one page of DescribeLogStreams.
func (b *Backend) ListStreams(ctx context.Context, group, prefix, token string) (lifecycle.Page[logresource.Stream], error) {
	input := &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(group),
	}
	if prefix != "" {
		input.LogStreamNamePrefix = aws.String(prefix)
	}
	if token != "" {
		input.NextToken = aws.String(token)
	}

	output, err := b.logsClient.DescribeLogStreams(ctx, input)
	if err != nil {
		return lifecycle.Page[logresource.Stream]{}, fmt.Errorf("describe log streams in %s: %w", group, classify(err))
	}

	page := lifecycle.Page[logresource.Stream]{
		Items:     make([]logresource.Stream, 0, len(output.LogStreams)),
		NextToken: aws.ToString(output.NextToken),
	}
	for _, ls := range output.LogStreams {
		page.Items = append(page.Items, convertLogStream(group, ls))
	}
	return page, nil
}

func convertLogGroup(lg cwltypes.LogGroup) logresource.Group {
	return logresource.Group{
		Name:          aws.ToString(lg.LogGroupName),
		ARN:           aws.ToString(lg.Arn),
		CreatedAt:     millis(lg.CreationTime),
		RetentionDays: lg.RetentionInDays,
		StoredBytes:   aws.ToInt64(lg.StoredBytes),
	}
}

func convertLogStream(group string, ls cwltypes.LogStream) logresource.Stream {
	return logresource.Stream{
		GroupName:   group,
		Name:        aws.ToString(ls.LogStreamName),
		ARN:         aws.ToString(ls.Arn),
		CreatedAt:   millis(ls.CreationTime),
		LastEventAt: millis(ls.LastEventTimestamp),
	}
}

// millis converts an epoch-milliseconds field. Nil is the zero time.
func millis(v *int64) time.Time {
	if v == nil {
		return time.Time{}
	}
	return time.UnixMilli(*v).UTC()
}
