package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var ErrUnsupportedMedia = &FormError{"Only image uploads are supported."}

// MediaFile is an uploaded image usable as an article's main image.
type MediaFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// MediaStore keeps uploaded images.
type MediaStore interface {
	Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) (*MediaFile, error)
	List(ctx context.Context) ([]MediaFile, error)
	Delete(ctx context.Context, name string) error
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MediaFileName makes an upload name safe and unique: base name only, spaces
// replaced, and the upload time appended.
func MediaFileName(original string, now time.Time) (string, error) {
	filename := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	filename = strings.ReplaceAll(filename, " ", "_")
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageTypes[ext]; !ok {
		return "", ErrUnsupportedMedia
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if name == "" || name == "." {
		name = "image"
	}
	return fmt.Sprintf("%s_%d%s", name, now.Unix(), ext), nil
}

// SaveUpload stores a multipart upload in ms.
func SaveUpload(ctx context.Context, ms MediaStore, header *multipart.FileHeader) (*MediaFile, error) {
	filename, err := MediaFileName(header.Filename, time.Now())
	if err != nil {
		return nil, err
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return ms.Save(ctx, filename, src, header.Size, imageTypes[strings.ToLower(filepath.Ext(filename))])
}

// LocalMedia stores files in a directory served by the web server under URLPrefix.
type LocalMedia struct {
	Dir       string
	URLPrefix string
}

func (m LocalMedia) url(name string) string {
	return strings.TrimSuffix(m.URLPrefix, "/") + "/" + name
}

func (m LocalMedia) Save(_ context.Context, name string, body io.Reader, _ int64, _ string) (*MediaFile, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, err
	}
	fullPath := SafeJoin(m.Dir, name)
	if fullPath == "" {
		return nil, fmt.Errorf("invalid media path")
	}
	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, body)
	if err != nil {
		return nil, err
	}
	return &MediaFile{Name: name, Size: n, URL: m.url(name)}, nil
}

func (m LocalMedia) List(_ context.Context) ([]MediaFile, error) {
	entries, err := os.ReadDir(m.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []MediaFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, MediaFile{Name: entry.Name(), Size: info.Size(), URL: m.url(entry.Name())})
	}
	return files, nil
}

func (m LocalMedia) Delete(_ context.Context, name string) error {
	fullPath := SafeJoin(m.Dir, name)
	if fullPath == "" {
		return fmt.Errorf("invalid media path")
	}
	err := os.Remove(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// s3API is the part of *s3.Client that S3Media uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Media stores files in a bucket. PublicURL is the base the objects are
// reachable under, e.g. a CDN in front of the bucket.
type S3Media struct {
	client    s3API
	bucket    string
	prefix    string
	publicURL string
}

func NewS3Media(client s3API, bucket, prefix, publicURL string) *S3Media {
	if publicURL == "" {
		publicURL = "https://" + bucket + ".s3.amazonaws.com"
	}
	return &S3Media{
		client:    client,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (m *S3Media) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *S3Media) url(key string) string {
	return m.publicURL + "/" + key
}

func (m *S3Media) Save(ctx context.Context, name string, body io.Reader, size int64, contentType string) (*MediaFile, error) {
	key := m.key(name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := m.client.PutObject(ctx, in); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	return &MediaFile{Name: name, Size: size, URL: m.url(key)}, nil
}

func (m *S3Media) List(ctx context.Context) ([]MediaFile, error) {
	var (
		files []MediaFile
		token *string
	)
	prefix := ""
	if m.prefix != "" {
		prefix = m.prefix + "/"
	}
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", m.bucket, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			files = append(files, MediaFile{
				Name: path.Base(key),
				Size: aws.ToInt64(obj.Size),
				URL:  m.url(key),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (m *S3Media) Delete(ctx context.Context, name string) error {
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid media path")
	}
	key := m.key(name)
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("head %s: %w", key, err)
	}
	if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
