package artifact

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/sitepublish/internal/pipeline"
)

type fakeObjects struct {
	objects map[string][]byte // "bucket/key" -> content
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		key := strings.TrimPrefix(k, aws.ToString(in.Bucket)+"/")
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(f.objects[k])))})
	}
	return out, nil
}

type fakeCommits struct {
	files    map[string]string
	messages []string
	err      error
}

func (f *fakeCommits) CommitFiles(_ context.Context, _ pipeline.Repository, files []pipeline.RepoFile, message string) (string, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return "", f.err
	}
	if f.files == nil {
		f.files = map[string]string{}
	}
	for _, file := range files {
		f.files[file.Path] = string(file.Content)
	}
	return "c0ffee", nil
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "site/", Typeflag: tar.TypeDir, Mode: 0o755}))
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		body := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

var repo = pipeline.Repository{Owner: "acme-sites", Name: "site-acme", FullName: "acme-sites/site-acme"}

func TestPublishArtifact_Tarball(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{
		"artifacts/acme/v3.tar.gz": tarball(t, map[string]string{
			"site/index.html":    "<html>",
			"./site/css/app.css": "body{}",
		}),
	}}
	commits := &fakeCommits{}
	p := NewPublisher(objects, "artifacts", commits, zerolog.Nop())

	n, err := p.PublishArtifact(t.Context(), repo, "acme/v3.tar.gz", "Deploy v3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"site/index.html": "<html>", "site/css/app.css": "body{}"}, commits.files)
	assert.Equal(t, []string{"Deploy v3"}, commits.messages, "whole bundle lands in one commit")
}

func TestPublishArtifact_Prefix(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{
		"other/acme/v4/index.html":   []byte("<html>v4</html>"),
		"other/acme/v4/app/page.tsx": []byte("export default 4"),
		"other/acme/v5/index.html":   []byte("not me"),
		"artifacts/acme/v4/ignored":  []byte("wrong bucket"),
	}}
	commits := &fakeCommits{}
	p := NewPublisher(objects, "artifacts", commits, zerolog.Nop())

	n, err := p.PublishArtifact(t.Context(), repo, "s3://other/acme/v4", "Deploy v4")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"index.html": "<html>v4</html>", "app/page.tsx": "export default 4"}, commits.files)
	assert.Len(t, commits.messages, 1)
}

func TestPublishArtifact_EmptyPrefix(t *testing.T) {
	commits := &fakeCommits{}
	p := NewPublisher(&fakeObjects{objects: map[string][]byte{}}, "artifacts", commits, zerolog.Nop())

	n, err := p.PublishArtifact(t.Context(), repo, "acme/v9", "Deploy v9")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, commits.messages)
}

func TestPublishArtifact_MissingTarball(t *testing.T) {
	p := NewPublisher(&fakeObjects{objects: map[string][]byte{}}, "artifacts", &fakeCommits{}, zerolog.Nop())

	_, err := p.PublishArtifact(t.Context(), repo, "acme/missing.tgz", "Deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get artifact acme/missing.tgz")
}

func TestPublishArtifact_CommitFailureWritesNothing(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{
		"artifacts/acme/v1/a.html": []byte("a"),
		"artifacts/acme/v1/b.html": []byte("b"),
		"artifacts/acme/v1/c.html": []byte("c"),
	}}
	commits := &fakeCommits{err: errors.New("github update ref: status 422: Update is not a fast forward")}
	p := NewPublisher(objects, "artifacts", commits, zerolog.Nop())

	n, err := p.PublishArtifact(t.Context(), repo, "acme/v1/", "Deploy v1")
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "commit 3 files")
	assert.Empty(t, commits.files)
}

func TestPublishArtifact_OversizedFileCommitsNothing(t *testing.T) {
	objects := &fakeObjects{objects: map[string][]byte{
		"artifacts/acme/v2/a.html": []byte("a"),
	}}
	lister := &oversizedLister{fakeObjects: objects, key: "acme/v2/huge.bin"}
	commits := &fakeCommits{}
	p := NewPublisher(lister, "artifacts", commits, zerolog.Nop())

	_, err := p.PublishArtifact(t.Context(), repo, "acme/v2", "Deploy v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact file huge.bin")
	assert.Empty(t, commits.messages)
}

// oversizedLister adds one listed object whose reported size is over the
// per-file limit.
type oversizedLister struct {
	*fakeObjects
	key string
}

func (o *oversizedLister) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out, err := o.fakeObjects.ListObjectsV2(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	out.Contents = append(out.Contents, s3types.Object{Key: aws.String(o.key), Size: aws.Int64(maxFileSize + 1)})
	return out, nil
}

func TestPublishArtifact_InvalidRef(t *testing.T) {
	p := NewPublisher(&fakeObjects{}, "", &fakeCommits{}, zerolog.Nop())

	_, err := p.PublishArtifact(t.Context(), repo, "acme/v1", "Deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact ref")
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"index.html", "index.html", true},
		{"./app/page.tsx", "app/page.tsx", true},
		{"../../etc/passwd", "etc/passwd", true},
		{"assets/", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := cleanName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
