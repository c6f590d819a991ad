// Package s3 stores backup artifacts in an S3 or S3-compatible bucket.
package s3

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/supporttools/GoDBVault/pkg/config"
)

// requestTimeout bounds every S3 call.
const requestTimeout = 5 * time.Minute

// Client represents an S3 storage client
type Client struct {
	s3Client *s3.Client
	cfg      *config.S3StorageConfig
}

// NewClient creates a new S3 client
func NewClient() (*Client, error) {
	if config.CFG.Storage.S3.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	s3Client, err := getS3Client()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	return &Client{
		s3Client: s3Client,
		cfg:      &config.CFG.Storage.S3,
	}, nil
}

// getS3Client initializes and returns an S3 client based on configuration
func getS3Client() (*s3.Client, error) {
	ctx := context.Background()
	cfg := config.CFG.Storage.S3

	// Create custom HTTP client with TLS configuration
	httpClient := &http.Client{}

	if cfg.UseSSL {
		tlsConfig := &tls.Config{}

		// Load custom CA if specified
		if cfg.CustomCAPath != "" && !cfg.SkipCertValidation {
			rootCAs, _ := x509.SystemCertPool()
			if rootCAs == nil {
				rootCAs = x509.NewCertPool()
			}

			caCert, err := os.ReadFile(cfg.CustomCAPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read custom CA certificate: %w", err)
			}

			if ok := rootCAs.AppendCertsFromPEM(caCert); !ok {
				return nil, fmt.Errorf("failed to append custom CA certificate")
			}

			tlsConfig.RootCAs = rootCAs
			log.Printf("Using custom CA certificate from %s", cfg.CustomCAPath)
		}

		if cfg.SkipCertValidation {
			tlsConfig.InsecureSkipVerify = true
			log.Printf("Warning: TLS certificate validation is disabled for S3 connections")
		}

		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
	}

	sdkOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRegion(cfg.Region),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, sdkOptions...)
	if err != nil {
		return nil, fmt.Errorf("AWS SDK config initialization error: %w", err)
	}

	s3Options := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		},
	}

	// Custom endpoint for S3-compatible storage such as MinIO
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return s3.NewFromConfig(awsCfg, s3Options...), nil
}

// Upload stores the file at localPath in the bucket under name.
func (c *Client) Upload(localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open backup file for S3 upload: %w", err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.objectKey(name)),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup to S3: %w", err)
	}

	log.Printf("Uploaded backup to S3: s3://%s/%s", c.cfg.Bucket, c.objectKey(name))
	return name, nil
}

// Download retrieves a stored artifact into localPath.
func (c *Client) Download(name, localPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.objectKey(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to download backup from S3: %w", err)
	}
	defer result.Body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(out, result.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write downloaded backup: %w", err)
	}

	return out.Close()
}

// List returns stored artifact names under the configured prefix, in
// descending order.
func (c *Client) List() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
	}
	if c.cfg.Prefix != "" {
		input.Prefix = aws.String(c.cfg.Prefix + "/")
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			names = append(names, c.stripPrefix(*obj.Key))
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Delete removes a stored artifact from the bucket.
func (c *Client) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.objectKey(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete S3 object: %w", err)
	}

	return nil
}

// PresignDownload returns a time-limited URL for fetching a stored artifact
// directly from the bucket, so large downloads bypass this process.
func (c *Client) PresignDownload(name string, expiry time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	presigner := s3.NewPresignClient(c.s3Client)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.objectKey(name)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 download: %w", err)
	}

	return req.URL, nil
}

// objectKey places an artifact name under the configured prefix.
func (c *Client) objectKey(name string) string {
	if c.cfg.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(c.cfg.Prefix, "/") + "/" + name
}

// stripPrefix reverses objectKey so callers only ever see artifact names.
func (c *Client) stripPrefix(key string) string {
	if c.cfg.Prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, strings.TrimSuffix(c.cfg.Prefix, "/")+"/")
}
