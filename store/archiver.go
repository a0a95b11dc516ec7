package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver uploads a run's full result set to S3 as a single JSON object,
// for models whose result set is too large to keep in the history row.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an S3Archiver for the given bucket, reusing cfg's
// AWS region/profile resolution.
func NewS3Archiver(ctx context.Context, cfg DBConfig, bucket string) (*S3Archiver, error) {
	awsCfg, err := cfg.loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config for s3 archiver: %w", err)
	}
	return &S3Archiver{
		client: s3.NewFromConfig(*awsCfg),
		bucket: bucket,
	}, nil
}

// key returns the object key a run's results are archived under.
func (a *S3Archiver) key(runID string) string {
	return "runs/" + runID + "/results.json"
}

// Archive uploads results (ref -> []float64) for runID to S3.
func (a *S3Archiver) Archive(ctx context.Context, runID string, results map[string][]float64) error {
	body, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results for run %s: %w", runID, err)
	}

	key := a.key(runID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("upload archive for run %s: %w", runID, err)
	}
	return nil
}

// Fetch downloads and decodes a previously archived result set.
func (a *S3Archiver) Fetch(ctx context.Context, runID string) (map[string][]float64, error) {
	key := a.key(runID)
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch archive for run %s: %w", runID, err)
	}
	defer out.Body.Close()

	var results map[string][]float64
	if err := json.NewDecoder(out.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode archive for run %s: %w", runID, err)
	}
	return results, nil
}
