package file

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

const utf8BOM = "\ufeff"

//RecordReader reads the records of a delimited text resource one at a time
type RecordReader struct {
	fd        FileDescriptor
	closer    io.Closer
	reader    *bufio.Reader
	tokenizer *DelimitedLineTokenizer
	line      int
	count     int64
}

//OpenRecordReader opens fd for reading, the reader can only be replayed by opening it again
func OpenRecordReader(fd FileDescriptor) (*RecordReader, error) {
	if fd.FileStore == nil {
		return nil, errors.Errorf("no file storage for file:%v", fd.FileName)
	}
	if len(fd.FieldNames) == 0 {
		return nil, errors.Errorf("no field names for file:%v", fd.FileName)
	}
	switch d := fd.delimiter(); d {
	case '"', '\r', '\n':
		return nil, errors.Errorf("invalid delimiter:%q for file:%v", d, fd.FileName)
	}
	rc, err := fd.FileStore.Open(fd.FileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open file:%v", fd.FileName)
	}
	var in io.Reader = rc
	if fd.Encoding != "" {
		enc, err := htmlindex.Get(fd.Encoding)
		if err != nil {
			rc.Close()
			return nil, errors.Wrapf(err, "unsupported encoding:%v of file:%v", fd.Encoding, fd.FileName)
		}
		in = transform.NewReader(rc, enc.NewDecoder())
	}
	return &RecordReader{
		fd:     fd,
		closer: rc,
		reader: bufio.NewReader(in),
		tokenizer: &DelimitedLineTokenizer{
			Delimiter:  fd.delimiter(),
			Names:      fd.FieldNames,
			LazyQuotes: fd.LazyQuotes,
		},
	}, nil
}

//Next returns the next record, io.EOF once the resource is exhausted.
//Header lines and lines that are blank after trimming produce no record.
func (r *RecordReader) Next() (FieldSet, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "read file:%v", r.fd.FileName)
		}
		if line == "" && err == io.EOF {
			return nil, io.EOF
		}
		r.line++
		if r.line == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		line = strings.TrimRight(line, "\r\n")
		if r.line <= r.fd.LinesToSkip || strings.TrimSpace(line) == "" {
			continue
		}
		fs, e := r.tokenizer.Tokenize(line, r.line)
		if e != nil {
			return nil, e
		}
		r.count++
		return fs, nil
	}
}

//SkipTo advances until count records have been read in total
func (r *RecordReader) SkipTo(count int64) error {
	for r.count < count {
		if _, err := r.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

//LineNumber the physical line number of the last line read
func (r *RecordReader) LineNumber() int {
	return r.line
}

//Count number of records read so far
func (r *RecordReader) Count() int64 {
	return r.count
}

func (r *RecordReader) Close() error {
	return r.closer.Close()
}
