package tcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveSink retains a copy of each packaged batch before it is submitted.
type ArchiveSink interface {
	Store(ctx context.Context, batch *PackagedBatch) error
}

// S3PutObjectAPI is the part of *s3.Client the sink needs.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveSink uploads batch archives to <bucket>/<prefix>/<batch id>.zip.
type S3ArchiveSink struct {
	client S3PutObjectAPI
	bucket string
	prefix string
}

// NewS3ArchiveSinkFromConfig loads the default AWS credential chain and builds an S3ArchiveSink.
func NewS3ArchiveSinkFromConfig(ctx context.Context, archiveConfig *ArchiveConfig) (*S3ArchiveSink, error) {

	if archiveConfig.Bucket == "" {
		return nil, errors.New("archive retention requires a bucket")
	}

	opts := []func(*config.LoadOptions) error{}
	if archiveConfig.Region != "" {
		opts = append(opts, config.WithRegion(archiveConfig.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3ArchiveSink(s3.NewFromConfig(awsConfig), archiveConfig.Bucket, archiveConfig.Prefix), nil
}

// NewS3ArchiveSink creates an S3ArchiveSink from an existing client.
func NewS3ArchiveSink(client S3PutObjectAPI, bucket, prefix string) *S3ArchiveSink {
	return &S3ArchiveSink{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Store uploads the archive file of batch.
func (sas *S3ArchiveSink) Store(ctx context.Context, batch *PackagedBatch) error {

	archive, err := os.Open(batch.ArchivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	info, err := archive.Stat()
	if err != nil {
		return err
	}

	_, err = sas.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sas.bucket),
		Key:           aws.String(sas.key(batch)),
		Body:          archive,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
		Metadata: map[string]string{
			"letter-count": fmt.Sprintf("%d", len(batch.Letters)),
		},
	})
	if err != nil {
		return fmt.Errorf("upload archive %s: %w", batch.ArchiveName, err)
	}

	return nil
}

func (sas *S3ArchiveSink) key(batch *PackagedBatch) string {
	if sas.prefix == "" {
		return batch.ArchiveName
	}
	return path.Join(sas.prefix, batch.ArchiveName)
}
