package file

import (
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

//HTTPFileSystem read-only resources served over http or https
type HTTPFileSystem struct {
	Client *http.Client
	//BaseURL prefixed to file names that are not absolute urls
	BaseURL string
}

func (fs *HTTPFileSystem) client() *http.Client {
	if fs.Client == nil {
		return http.DefaultClient
	}
	return fs.Client
}

func (fs *HTTPFileSystem) url(fileName string) string {
	if strings.HasPrefix(fileName, "http://") || strings.HasPrefix(fileName, "https://") {
		return fileName
	}
	return strings.TrimRight(fs.BaseURL, "/") + "/" + strings.TrimLeft(fileName, "/")
}

func (fs *HTTPFileSystem) Exists(fileName string) (bool, error) {
	resp, err := fs.client().Head(fs.url(fileName))
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	}
	return false, errors.Errorf("head %v: unexpected status %v", fs.url(fileName), resp.Status)
}

func (fs *HTTPFileSystem) Open(fileName string) (io.ReadCloser, error) {
	resp, err := fs.client().Get(fs.url(fileName))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("get %v: unexpected status %v", fs.url(fileName), resp.Status)
	}
	return resp.Body, nil
}

func (fs *HTTPFileSystem) Create(fileName string) (io.WriteCloser, error) {
	return nil, errors.Errorf("http resource %v is read-only", fs.url(fileName))
}

func (fs *HTTPFileSystem) String() string {
	return strings.TrimRight(fs.BaseURL, "/")
}
