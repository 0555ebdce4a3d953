// Package minio writes KML documents to S3-compatible object storage.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bnema/kmlx/internal/adapters/kml"
	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const Scheme = "s3"

const defaultRegion = "us-east-1"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("s3 endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("s3 endpoint must be host[:port], got %q", c.Endpoint)
	}
	return nil
}

// Store uploads documents under Prefix in Bucket.
type Store struct {
	client *minio.Client
	Bucket string
	Prefix string
}

var (
	_ ports.DocumentStore  = (*Store)(nil)
	_ ports.DocumentReader = (*Store)(nil)
)

func NewClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Region:    region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return client, nil
}

func NewStore(client *minio.Client, bucket, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &Store{client: client, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

func (s *Store) Save(ctx context.Context, doc domain.Document, name string) (string, error) {
	if !strings.EqualFold(path.Ext(name), kml.Extension) {
		name += kml.Extension
	}
	key := path.Join(s.Prefix, name)

	var buf bytes.Buffer
	if err := kml.Encode(&buf, doc); err != nil {
		return "", err
	}

	size := int64(buf.Len())
	_, err := s.client.PutObject(ctx, s.Bucket, key, &buf, size, minio.PutObjectOptions{ContentType: kml.ContentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return Location(s.Bucket, key), nil
}

// Load reads a document from an s3:// location in any bucket the client can reach.
func (s *Store) Load(ctx context.Context, location string) (domain.Document, error) {
	bucket, prefix, name, err := ParseTarget(location)
	if err != nil {
		return domain.Document{}, err
	}
	key := path.Join(prefix, name)

	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return domain.Document{}, fmt.Errorf("download %s: %w", key, err)
	}
	defer object.Close()

	doc, err := kml.Decode(object)
	if err != nil {
		return domain.Document{}, fmt.Errorf("download %s: %w", key, err)
	}
	return doc, nil
}

// IsTarget reports whether an output or input names an object location.
func IsTarget(raw string) bool {
	return strings.HasPrefix(strings.ToLower(raw), Scheme+"://")
}

// ParseTarget splits s3://bucket/a/b.kml into "bucket", "a" and "b.kml".
func ParseTarget(raw string) (bucket, prefix, name string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", "", fmt.Errorf("parse s3 target: %w", err)
	}
	if !strings.EqualFold(parsed.Scheme, Scheme) {
		return "", "", "", fmt.Errorf("s3 target must start with %s://: %s", Scheme, raw)
	}
	if parsed.Host == "" {
		return "", "", "", fmt.Errorf("s3 target has no bucket: %s", raw)
	}

	key := strings.Trim(parsed.Path, "/")
	if key == "" {
		return "", "", "", fmt.Errorf("s3 target has no object name: %s", raw)
	}
	prefix, name = path.Split(key)
	return parsed.Host, strings.Trim(prefix, "/"), name, nil
}

func Location(bucket, key string) string {
	return Scheme + "://" + bucket + "/" + key
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
