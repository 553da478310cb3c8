package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://physics-data/run2/events.parquet")
	require.NoError(t, err)
	assert.Equal(t, "physics-data", bucket)
	assert.Equal(t, "run2/events.parquet", key)

	for _, bad := range []string{"/local/file.jsonl", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := ParseURI(bad)
		assert.Error(t, err, bad)
	}
}
