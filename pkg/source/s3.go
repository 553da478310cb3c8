package source

import (
	"context"
	"fmt"
	"os"
	"path"

	s3store "github.com/logflow/sweep/pkg/storage/s3"
)

// S3Options configures access to s3:// inputs.
type S3Options = s3store.Config

// OpenS3 downloads the object named by uri to a temporary file and opens it
// by its extension. The file is removed when the source is closed.
func OpenS3(ctx context.Context, uri string, opts Options) (Source, error) {
	bucket, key, err := s3store.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if DetectFormat(key) == FormatUnknown {
		return nil, fmt.Errorf("unsupported input format %q", path.Ext(key))
	}

	client, err := s3store.NewClient(ctx, opts.S3)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "sweep-*"+path.Ext(key))
	if err != nil {
		return nil, err
	}
	name := tmp.Name()

	n, err := client.Download(ctx, bucket, key, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return nil, err
	}
	opts.logger().Info("downloaded input", "uri", uri, "bytes", n)

	src, err := OpenFile(ctx, name, opts)
	if err != nil {
		os.Remove(name)
		return nil, err
	}
	return &tempSource{Source: src, path: name}, nil
}

// tempSource removes its backing file on Close.
type tempSource struct {
	Source
	path string
}

func (t *tempSource) Close() error {
	err := t.Source.Close()
	if rerr := os.Remove(t.path); err == nil {
		err = rerr
	}
	return err
}
