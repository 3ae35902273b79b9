package file

import (
	"fmt"
	"io"
	"net/textproto"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
)

type LocalFileSystem struct {
}

func (fs *LocalFileSystem) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(fileName string) (io.ReadCloser, error) {
	return os.Open(fileName)
}

func (fs *LocalFileSystem) Create(fileName string) (io.WriteCloser, error) {
	return os.Create(fileName)
}

func (fs *LocalFileSystem) String() string {
	return "file"
}

type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) connect() (*ftp.ServerConn, error) {
	port := fs.Port
	if port == 0 {
		port = 21
	}
	timeout := fs.ConnTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c, err := ftp.Dial(fmt.Sprintf("%s:%d", fs.Host, port), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	user := fs.User
	if user == "" {
		user = "anonymous"
	}
	if err = c.Login(user, fs.Password); err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

func (fs *FTPFileSystem) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if err != nil {
		return false, err
	}
	defer c.Quit()
	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}

//ftpReader closes the data connection before quitting the control connection
type ftpReader struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Close() error {
	err := r.Response.Close()
	if e := r.conn.Quit(); err == nil {
		err = e
	}
	return err
}

func (fs *FTPFileSystem) Open(fileName string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	r, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{Response: r, conn: c}, nil
}

type ftpWriter struct {
	*io.PipeWriter
	done <-chan error
}

func (w *ftpWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return err
	}
	return <-w.done
}

func (fs *FTPFileSystem) Create(fileName string) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := c.Stor(fileName, r)
		r.CloseWithError(err)
		if e := c.Quit(); err == nil {
			err = e
		}
		done <- err
	}()
	return &ftpWriter{PipeWriter: w, done: done}, nil
}

func (fs *FTPFileSystem) String() string {
	return fmt.Sprintf("ftp://%s:%d", fs.Host, fs.Port)
}
