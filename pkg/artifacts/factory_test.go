package artifacts

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func backends(t *testing.T) map[string]FS {
	t.Helper()
	local, err := NewLocalFS(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)
	return map[string]FS{
		"local":  local,
		"memory": NewMemFS(),
		"s3":     NewS3FSWithClient(newFakeS3(), "bucket", "agora/"),
	}
}

func TestFSContract(t *testing.T) {
	for name, fsys := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const doc = "designs/dark-mode/design.md"

			require.NoError(t, fsys.MkdirAll(ctx, "designs/dark-mode"))

			ok, err := fsys.Exists(ctx, doc)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = fsys.ReadFile(ctx, doc)
			require.ErrorIs(t, err, ErrNotExist)

			require.NoError(t, fsys.WriteFile(ctx, doc, []byte("# Dark mode\n")))
			ok, err = fsys.Exists(ctx, doc)
			require.NoError(t, err)
			assert.True(t, ok)

			data, err := fsys.ReadFile(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, "# Dark mode\n", string(data))

			require.NoError(t, fsys.WriteFile(ctx, doc, []byte("v2")))
			data, err = fsys.ReadFile(ctx, doc)
			require.NoError(t, err)
			assert.Equal(t, "v2", string(data))

			require.NoError(t, fsys.Delete(ctx, doc))
			require.ErrorIs(t, fsys.Delete(ctx, doc), ErrNotExist)

			ok, err = fsys.Exists(ctx, doc)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFSRejectsEscapingPaths(t *testing.T) {
	for name, fsys := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, bad := range []string{"", "/etc/passwd", "../outside.md", "designs/../../x", ".."} {
				err := fsys.WriteFile(ctx, bad, []byte("x"))
				require.ErrorIs(t, err, ErrInvalidPath, bad)
			}
		})
	}
}

func TestLocalFSLayout(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	l, err := NewLocalFS(root)
	require.NoError(t, err)

	require.NoError(t, l.WriteFile(ctx, "designs/a/design.md", []byte("a")))
	_, err = os.Stat(filepath.Join(root, "designs", "a", "design.md"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "designs", "a"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	require.NoError(t, l.Delete(ctx, "designs/a/design.md"))
	_, err = os.Stat(filepath.Join(root, "designs", "a"))
	assert.True(t, os.IsNotExist(err), "empty document directory removed")
}

func TestS3FSKeysUsePrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fsys := NewS3FSWithClient(fake, "bucket", "agora/")

	require.NoError(t, fsys.WriteFile(ctx, "designs/x/design.md", []byte("x")))
	_, ok := fake.objects["agora/designs/x/design.md"]
	assert.True(t, ok)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	fsys, err := NewFromConfig(ctx, Config{Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, fsys)

	fsys, err = NewFromConfig(ctx, Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemFS{}, fsys)

	_, err = NewFromConfig(ctx, Config{Backend: BackendS3})
	require.ErrorContains(t, err, "bucket is required")

	_, err = NewFromConfig(ctx, Config{Backend: BackendGCS})
	require.ErrorContains(t, err, "bucket is required")

	_, err = NewFromConfig(ctx, Config{Backend: "azure"})
	require.ErrorContains(t, err, "unsupported artifact storage type")
}
