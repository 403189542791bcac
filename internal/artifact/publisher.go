// Package artifact reads generated site bundles from S3 and commits their
// files into a site repository.
package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/pipeline"
)

// Limits on a single bundle file and on the whole bundle.
const (
	maxFileSize   = 50 << 20
	maxBundleSize = 200 << 20
)

// ObjectAPI is the part of the S3 client the publisher uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Committer writes a set of files to a repository's default branch as one
// commit and returns the commit SHA.
type Committer interface {
	CommitFiles(ctx context.Context, repo pipeline.Repository, files []pipeline.RepoFile, message string) (string, error)
}

// S3Options configures the S3 client.
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. An empty endpoint uses AWS.
func NewS3Client(opts S3Options) *s3.Client {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	o := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	}
	return s3.New(o)
}

// Publisher implements pipeline.ArtifactPublisher.
type Publisher struct {
	objects ObjectAPI
	bucket  string
	commits Committer
	logger  zerolog.Logger
}

func NewPublisher(objects ObjectAPI, bucket string, commits Committer, logger zerolog.Logger) *Publisher {
	return &Publisher{
		objects: objects,
		bucket:  bucket,
		commits: commits,
		logger:  logger.With().Str("component", "artifact-publisher").Logger(),
	}
}

// PublishArtifact commits every file of the bundle at ref into repo as a
// single commit and returns how many files it carried. A ref ending in
// .tar.gz or .tgz is a gzipped tarball; any other ref is a key prefix whose
// objects are the files. Refs may be given as s3://bucket/key to override the
// default bucket. An empty bundle commits nothing.
func (p *Publisher) PublishArtifact(ctx context.Context, repo pipeline.Repository, ref, message string) (int, error) {
	bucket, key, err := p.parseRef(ref)
	if err != nil {
		return 0, err
	}
	var files []pipeline.RepoFile
	if strings.HasSuffix(key, ".tar.gz") || strings.HasSuffix(key, ".tgz") {
		files, err = p.readTarball(ctx, bucket, key)
	} else {
		files, err = p.readPrefix(ctx, bucket, key)
	}
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		p.logger.Warn().Str("repository", repo.FullName).Str("artifact", key).Msg("artifact is empty, nothing committed")
		return 0, nil
	}

	sha, err := p.commits.CommitFiles(ctx, repo, files, message)
	if err != nil {
		return 0, fmt.Errorf("commit %d files: %w", len(files), err)
	}
	p.logger.Info().Str("repository", repo.FullName).Str("artifact", key).
		Int("files", len(files)).Str("commit", sha).Msg("published artifact")
	return len(files), nil
}

func (p *Publisher) parseRef(ref string) (bucket, key string, err error) {
	if rest, ok := strings.CutPrefix(ref, "s3://"); ok {
		bucket, key, _ = strings.Cut(rest, "/")
	} else {
		bucket, key = p.bucket, strings.TrimPrefix(ref, "/")
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid artifact ref %q", ref)
	}
	return bucket, key, nil
}

// bundle accumulates files and enforces the size limits.
type bundle struct {
	files []pipeline.RepoFile
	size  int64
}

func (b *bundle) check(name string, size int64) error {
	if size > maxFileSize {
		return fmt.Errorf("artifact file %s is %d bytes, limit is %d", name, size, maxFileSize)
	}
	if b.size+size > maxBundleSize {
		return fmt.Errorf("artifact exceeds %d bytes at %s", maxBundleSize, name)
	}
	return nil
}

func (b *bundle) add(name string, content []byte) {
	b.files = append(b.files, pipeline.RepoFile{Path: name, Content: content})
	b.size += int64(len(content))
}

func (p *Publisher) readTarball(ctx context.Context, bucket, key string) ([]pipeline.RepoFile, error) {
	obj, err := p.objects.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", key, err)
	}
	defer obj.Body.Close()

	gz, err := gzip.NewReader(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", key, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var b bundle
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", key, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, ok := cleanName(hdr.Name)
		if !ok {
			continue
		}
		if err := b.check(name, hdr.Size); err != nil {
			return nil, err
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read artifact file %s: %w", name, err)
		}
		b.add(name, content)
	}
	return b.files, nil
}

func (p *Publisher) readPrefix(ctx context.Context, bucket, prefix string) ([]pipeline.RepoFile, error) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(p.objects, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var b bundle
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list artifact %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name, ok := cleanName(strings.TrimPrefix(key, prefix))
			if !ok {
				continue
			}
			if err := b.check(name, aws.ToInt64(obj.Size)); err != nil {
				return nil, err
			}
			content, err := p.readObject(ctx, bucket, key)
			if err != nil {
				return nil, err
			}
			b.add(name, content)
		}
	}
	return b.files, nil
}

func (p *Publisher) readObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := p.objects.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get artifact file %s: %w", key, err)
	}
	defer obj.Body.Close()
	content, err := io.ReadAll(io.LimitReader(obj.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read artifact file %s: %w", key, err)
	}
	return content, nil
}

// cleanName normalises a bundle path relative to the repository root and
// rejects directory entries.
func cleanName(name string) (string, bool) {
	if name == "" || strings.HasSuffix(name, "/") {
		return "", false
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" {
		return "", false
	}
	return clean, true
}
