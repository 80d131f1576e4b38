package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/atheastudio/creative-director/config"
)

// folderMarker is the zero-byte object that makes an empty per-user folder
// discoverable.
const folderMarker = ".folder"

// S3Store implements BlobStore on top of an S3 bucket. The object key doubles
// as the blob id; a "folder" is the key prefix users/<name>.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store wraps an already-constructed client.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// NewS3StoreFromConfig builds the S3 client from the default AWS credential
// chain and the configured region/bucket.
func NewS3StoreFromConfig(ctx context.Context) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(appConfig.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}
	log.Println("S3 Client Initialized")
	return NewS3Store(s3.NewFromConfig(cfg), appConfig.AWSBucketName), nil
}

func (s *S3Store) EnsureFolder(ctx context.Context, name string) (string, error) {
	prefix := "users/" + name
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s: %w", name, err)
	}
	if len(out.Contents) > 0 {
		return prefix, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(prefix + "/" + folderMarker),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", name, err)
	}
	return prefix, nil
}

func (s *S3Store) List(ctx context.Context, q ListQuery) ([]FileMetadata, error) {
	prefix := q.Parent + "/"
	var files []FileMetadata
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", q.Parent, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			name := path.Base(key)
			if name == folderMarker {
				continue
			}
			if q.Name != "" && name != q.Name {
				continue
			}
			if q.NamePrefix != "" && !strings.HasPrefix(name, q.NamePrefix) {
				continue
			}
			meta := FileMetadata{ID: key, Name: name, Parent: q.Parent}
			if q.MimeType != "" {
				head, err := s.Metadata(ctx, key)
				if err != nil || head.MimeType != q.MimeType {
					continue
				}
				meta.MimeType = head.MimeType
			}
			files = append(files, meta)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return files, nil
}

func (s *S3Store) Create(ctx context.Context, meta FileMetadata, content []byte) (string, error) {
	key := meta.Parent + "/" + meta.Name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(meta.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return key, nil
}

func (s *S3Store) UpdateContent(ctx context.Context, id string, content []byte, mimeType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("failed to update file %s: %w", id, err)
	}
	return nil
}

func (s *S3Store) Metadata(ctx context.Context, id string) (FileMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to read metadata of %s: %w", id, err)
	}
	return FileMetadata{
		ID:       id,
		Name:     path.Base(id),
		MimeType: aws.ToString(out.ContentType),
		Parent:   path.Dir(id),
	}, nil
}

func (s *S3Store) Content(ctx context.Context, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", id, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return nil
}
