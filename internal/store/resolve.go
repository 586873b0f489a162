package store

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/do"
)

// Resolver maps an output destination to the uploader that can write it:
// s3://bucket/key goes to S3, anything else is a local file path.
type Resolver struct {
	s3 func() (PutObjectAPI, error)
}

func NewResolver(i *do.Injector) (*Resolver, error) {
	return &Resolver{s3: func() (PutObjectAPI, error) {
		client, err := do.Invoke[*s3.Client](i)
		if err != nil {
			return nil, err
		}
		return client, nil
	}}, nil
}

func NewResolverWith(s3 func() (PutObjectAPI, error)) *Resolver {
	return &Resolver{s3: s3}
}

func (r *Resolver) Resolve(dest string) (Uploader, string, error) {
	if !strings.HasPrefix(dest, "s3://") {
		if strings.TrimSpace(dest) == "" {
			return nil, "", fmt.Errorf("output path is required")
		}
		return &FileUploader{}, dest, nil
	}

	u, err := url.Parse(dest)
	if err != nil {
		return nil, "", fmt.Errorf("invalid s3 destination %q: %w", dest, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, "", fmt.Errorf("invalid s3 destination %q: want s3://bucket/key", dest)
	}

	client, err := r.s3()
	if err != nil {
		return nil, "", err
	}
	return &S3Uploader{Client: client, Bucket: u.Host}, key, nil
}
