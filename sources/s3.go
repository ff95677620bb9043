//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 The TabPort Authors
//
// This file is part of TabPort.
//
// TabPort is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TabPort is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TabPort. If not, see https://www.gnu.org/licenses/.

package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tabport/tabport/core"
)

// S3SourceOptions configures access to the object store.
type S3SourceOptions struct {
	Region         string
	Profile        string
	Credentials    aws.Credentials
	EndpointURL    string // custom endpoint for S3-compatible services
	ForcePathStyle bool
}

// S3Option represents a configuration function for S3Source.
type S3Option func(*S3SourceOptions)

func WithS3Region(region string) S3Option {
	return func(o *S3SourceOptions) { o.Region = region }
}

func WithS3Profile(profile string) S3Option {
	return func(o *S3SourceOptions) { o.Profile = profile }
}

func WithS3Credentials(creds aws.Credentials) S3Option {
	return func(o *S3SourceOptions) { o.Credentials = creds }
}

func WithS3Endpoint(endpoint string) S3Option {
	return func(o *S3SourceOptions) { o.EndpointURL = endpoint }
}

func WithS3PathStyle(pathStyle bool) S3Option {
	return func(o *S3SourceOptions) { o.ForcePathStyle = pathStyle }
}

// S3Source implements core.RowSource for a single object in an S3 bucket. The
// object is spooled to a temporary file on first use and parsed by the file
// source matching its extension, so every registered format works over S3.
type S3Source struct {
	bucket string
	key    string
	opts   S3SourceOptions

	client    *s3.Client
	localPath string
	inner     core.RowSource
}

// NewS3Source creates a source over one bucket/key pair.
func NewS3Source(bucket, key string, options ...S3Option) (*S3Source, error) {
	if bucket == "" || key == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("bucket and key are required")}
	}

	var opts S3SourceOptions
	for _, option := range options {
		option(&opts)
	}

	cfg, err := loadAWSConfig(opts)
	if err != nil {
		return nil, &SourceError{Op: "create_aws_config", Err: err}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	return &S3Source{bucket: bucket, key: key, opts: opts, client: client}, nil
}

// loadAWSConfig builds the AWS config, letting explicit credentials override
// the default chain.
func loadAWSConfig(opts S3SourceOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}
	return cfg, nil
}

// fetch downloads the object to a temp file and opens the matching file
// source over it. Idempotent: the spooled copy is reused across calls.
func (s *S3Source) fetch(ctx context.Context) error {
	if s.localPath != "" {
		return nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return &SourceError{Op: "get_object", Err: err}
	}
	defer out.Body.Close()

	ext := filepath.Ext(s.key)
	tmp, err := os.CreateTemp("", "tabport-s3-*"+ext)
	if err != nil {
		return &SourceError{Op: "spool", Err: err}
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &SourceError{Op: "spool", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &SourceError{Op: "spool", Err: err}
	}

	s.localPath = tmp.Name()
	return nil
}

// openInner opens a fresh file source over the spooled copy.
func (s *S3Source) openInner(ctx context.Context) (core.RowSource, error) {
	if err := s.fetch(ctx); err != nil {
		return nil, err
	}
	return Open(s.localPath)
}

// Headers implements core.RowSource.
func (s *S3Source) Headers() ([]string, error) {
	inner, err := s.openInner(context.Background())
	if err != nil {
		return nil, err
	}
	defer inner.Close()
	return inner.Headers()
}

// Preview implements core.RowSource.
func (s *S3Source) Preview(ctx context.Context, n int) ([]core.Record, error) {
	inner, err := s.openInner(ctx)
	if err != nil {
		return nil, err
	}
	defer inner.Close()
	return inner.Preview(ctx, n)
}

// Read implements core.RowSource.
func (s *S3Source) Read(ctx context.Context) (core.Record, error) {
	if s.inner == nil {
		inner, err := s.openInner(ctx)
		if err != nil {
			return nil, err
		}
		s.inner = inner
	}
	return s.inner.Read(ctx)
}

// Close implements core.RowSource, removing the spooled copy.
func (s *S3Source) Close() error {
	var firstErr error
	if s.inner != nil {
		firstErr = s.inner.Close()
		s.inner = nil
	}
	if s.localPath != "" {
		if err := os.Remove(s.localPath); err != nil && firstErr == nil {
			firstErr = err
		}
		s.localPath = ""
	}
	return firstErr
}
