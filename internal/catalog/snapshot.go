package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
)

// ErrSnapshotMissing is returned by Load when no snapshot has been written yet
var ErrSnapshotMissing = errors.New("catalog snapshot does not exist")

// Snapshot stores the serialized catalog outside the database
type Snapshot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Name() string
}

// SnapshotEntry is one product in the snapshot document
type SnapshotEntry struct {
	Name string  `json:"name"`
	Kcal float64 `json:"kcal"`
}

// DecodeSnapshot parses a snapshot document
func DecodeSnapshot(data []byte) ([]SnapshotEntry, error) {
	var entries []SnapshotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode catalog snapshot: %w", err)
	}
	return entries, nil
}

// EncodeSnapshot renders a snapshot document
func EncodeSnapshot(entries []SnapshotEntry) ([]byte, error) {
	if entries == nil {
		entries = []SnapshotEntry{}
	}
	return json.MarshalIndent(entries, "", "    ")
}

// FileSnapshot keeps the snapshot in a local JSON file
type FileSnapshot struct {
	FilePath string
}

func NewFileSnapshot(filePath string) *FileSnapshot {
	return &FileSnapshot{FilePath: filePath}
}

func (f *FileSnapshot) Name() string { return "file" }

func (f *FileSnapshot) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotMissing
	}
	return data, err
}

// Save writes through a temporary file so readers never see a partial document
func (f *FileSnapshot) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(f.FilePath)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.FilePath)
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Snapshot keeps the snapshot as an S3 object
type S3Snapshot struct {
	bucket string
	key    string
	s3     s3API
}

func NewS3Snapshot(s3Client *s3.Client, bucket, key string) *S3Snapshot {
	return &S3Snapshot{bucket: bucket, key: key, s3: s3Client}
}

func (s *S3Snapshot) Name() string { return "s3" }

func (s *S3Snapshot) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrSnapshotMissing
		}
		return nil, fmt.Errorf("failed to get catalog object from S3: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *S3Snapshot) Save(ctx context.Context, data []byte) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put catalog object to S3: %w", err)
	}
	return nil
}

// minioAPI is the part of *minio.Client the snapshot needs
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
}

type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// MinioSnapshot keeps the snapshot in a MinIO bucket
type MinioSnapshot struct {
	api    minioAPI
	bucket string
	key    string
}

// NewMinioSnapshot creates the bucket when it does not exist yet
func NewMinioSnapshot(ctx context.Context, client *minio.Client, bucket, key string) (*MinioSnapshot, error) {
	return newMinioSnapshotWithAPI(ctx, minioClientWrapper{c: client}, bucket, key)
}

func newMinioSnapshotWithAPI(ctx context.Context, api minioAPI, bucket, key string) (*MinioSnapshot, error) {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &MinioSnapshot{api: api, bucket: bucket, key: key}, nil
}

func (m *MinioSnapshot) Name() string { return "minio" }

func (m *MinioSnapshot) Load(ctx context.Context) ([]byte, error) {
	obj, err := m.api.GetObject(ctx, m.bucket, m.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrSnapshotMissing
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (m *MinioSnapshot) Save(ctx context.Context, data []byte) error {
	_, err := m.api.PutObject(ctx, m.bucket, m.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}
