package file

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

//GCSFileSystem objects of one Google Cloud Storage bucket
type GCSFileSystem struct {
	Client  *storage.Client
	Bucket  string
	Timeout time.Duration
}

//NewGCSFileSystem create a storage client for bucket
func NewGCSFileSystem(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSFileSystem, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create gcs client")
	}
	return &GCSFileSystem{Client: client, Bucket: bucket, Timeout: time.Minute}, nil
}

func (fs *GCSFileSystem) ctx() (context.Context, context.CancelFunc) {
	if fs.Timeout > 0 {
		return context.WithTimeout(context.Background(), fs.Timeout)
	}
	return context.WithCancel(context.Background())
}

func (fs *GCSFileSystem) Exists(fileName string) (bool, error) {
	ctx, cancel := fs.ctx()
	defer cancel()
	_, err := fs.Client.Bucket(fs.Bucket).Object(fileName).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *GCSFileSystem) Open(fileName string) (io.ReadCloser, error) {
	r, err := fs.Client.Bucket(fs.Bucket).Object(fileName).NewReader(context.Background())
	if err != nil {
		return nil, errors.Wrapf(err, "open gs://%s/%s", fs.Bucket, fileName)
	}
	return r, nil
}

func (fs *GCSFileSystem) Create(fileName string) (io.WriteCloser, error) {
	return fs.Client.Bucket(fs.Bucket).Object(fileName).NewWriter(context.Background()), nil
}

func (fs *GCSFileSystem) String() string {
	return "gs://" + fs.Bucket
}
