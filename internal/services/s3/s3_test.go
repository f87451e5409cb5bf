package s3service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryClient is an in-memory bucket store.
type memoryClient struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemoryClient() *memoryClient {
	return &memoryClient{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	m.objects[key] = data
	m.contentTypes[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryClient) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.CopySource)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (m *memoryClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestService_PutGetMove(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient()
	svc := NewWithClient(client)

	require.NoError(t, svc.PutObject(ctx, "batches", "uploads/a.csv", []byte("kind,revenue\n"), "text/csv"))
	assert.Equal(t, "text/csv", client.contentTypes["batches/uploads/a.csv"])

	data, err := svc.GetObject(ctx, "batches", "uploads/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "kind,revenue\n", string(data))

	require.NoError(t, svc.MoveObject(ctx, "batches", "uploads/a.csv", "processed/a.csv"))
	assert.NotContains(t, client.objects, "batches/uploads/a.csv")
	assert.Contains(t, client.objects, "batches/processed/a.csv")

	_, err = svc.GetObject(ctx, "batches", "uploads/a.csv")
	var noSuchKey *types.NoSuchKey
	assert.True(t, errors.As(err, &noSuchKey))
}

func TestResultKey(t *testing.T) {
	tests := []struct {
		prefix, source, expected string
	}{
		{"results/", "uploads/2024/applicants.csv", "results/2024/applicants.json"},
		{"results", "applicants.csv", "results/applicants.json"},
		{"out/", "uploads/batch", "out/batch.json"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResultKey(tt.prefix, tt.source))
		})
	}
}

func TestProcessedKey(t *testing.T) {
	assert.Equal(t, "processed/2024/applicants.csv", ProcessedKey("uploads/2024/applicants.csv"))
	assert.Equal(t, "processed/applicants.csv", ProcessedKey("applicants.csv"))
}
