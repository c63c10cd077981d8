// Package textract provides a client for the AWS Textract asynchronous document analysis API.
// It exposes only the submit/poll contract the ingestion pipeline needs and converts the
// SDK's block structures into plain values.
package textract

import (
	"context"
	"docqa-go/internal/config"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
)

// ErrRejected marks errors where the service refused the request itself
// (bad job id, unreadable document, missing permissions). Retrying will not help.
var ErrRejected = errors.New("textract rejected the request")

// rejectedCodes lists API error codes that are never worth retrying.
var rejectedCodes = map[string]bool{
	"InvalidJobIdException":        true,
	"InvalidParameterException":    true,
	"InvalidS3ObjectException":     true,
	"UnsupportedDocumentException": true,
	"DocumentTooLargeException":    true,
	"BadDocumentException":         true,
	"AccessDeniedException":        true,
	"InvalidKMSKeyException":       true,
}

// Client defines the narrow OCR analysis contract.
type Client interface {
	// StartAnalysis submits an asynchronous analysis job and returns its job id.
	StartAnalysis(ctx context.Context, loc DocumentLocation, features []Feature) (string, error)
	// GetAnalysis returns one page of job results. nextToken is empty for the first page.
	GetAnalysis(ctx context.Context, jobID, nextToken string) (*Page, error)
}

type awsClient struct {
	api *textract.Client
}

// NewClient creates a Textract client from static credentials, falling back to the
// default AWS credential chain when no key is configured.
func NewClient(ctx context.Context, cfg config.AWSConfig) (Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &awsClient{api: textract.NewFromConfig(awsCfg)}, nil
}

// StartAnalysis calls StartDocumentAnalysis for an S3 object.
func (c *awsClient) StartAnalysis(ctx context.Context, loc DocumentLocation, features []Feature) (string, error) {
	featureTypes := make([]types.FeatureType, 0, len(features))
	for _, f := range features {
		featureTypes = append(featureTypes, types.FeatureType(f))
	}
	out, err := c.api.StartDocumentAnalysis(ctx, &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{
				Bucket: aws.String(loc.Bucket),
				Name:   aws.String(loc.Key),
			},
		},
		FeatureTypes: featureTypes,
	})
	if err != nil {
		return "", classify("start document analysis", err)
	}
	jobID := aws.ToString(out.JobId)
	if jobID == "" {
		return "", errors.New("textract returned an empty job id")
	}
	return jobID, nil
}

// GetAnalysis calls GetDocumentAnalysis and converts the response.
func (c *awsClient) GetAnalysis(ctx context.Context, jobID, nextToken string) (*Page, error) {
	in := &textract.GetDocumentAnalysisInput{
		JobId:      aws.String(jobID),
		MaxResults: aws.Int32(1000),
	}
	if nextToken != "" {
		in.NextToken = aws.String(nextToken)
	}
	out, err := c.api.GetDocumentAnalysis(ctx, in)
	if err != nil {
		return nil, classify("get document analysis", err)
	}

	page := &Page{
		JobStatus:     mapStatus(out.JobStatus),
		StatusMessage: aws.ToString(out.StatusMessage),
		NextToken:     aws.ToString(out.NextToken),
		Blocks:        make([]Block, 0, len(out.Blocks)),
	}
	for _, b := range out.Blocks {
		page.Blocks = append(page.Blocks, convertBlock(b))
	}
	return page, nil
}

// mapStatus folds Textract's job states into RUNNING / SUCCEEDED / FAILED.
// PARTIAL_SUCCESS is terminal but not a success.
func mapStatus(s types.JobStatus) JobStatus {
	switch s {
	case types.JobStatusSucceeded:
		return StatusSucceeded
	case types.JobStatusFailed, types.JobStatusPartialSuccess:
		return StatusFailed
	default:
		return StatusRunning
	}
}

func convertBlock(b types.Block) Block {
	out := Block{
		ID:          aws.ToString(b.Id),
		Type:        BlockType(b.BlockType),
		Text:        aws.ToString(b.Text),
		Page:        int(aws.ToInt32(b.Page)),
		RowIndex:    int(aws.ToInt32(b.RowIndex)),
		ColumnIndex: int(aws.ToInt32(b.ColumnIndex)),
	}
	for _, rel := range b.Relationships {
		out.Relationships = append(out.Relationships, Relationship{
			Type: RelationshipType(rel.Type),
			IDs:  append([]string(nil), rel.Ids...),
		})
	}
	return out
}

func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && rejectedCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%s: %w: %s: %s", op, ErrRejected, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("%s: %w", op, err)
}
