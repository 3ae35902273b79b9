package file

import (
	"fmt"
	"io"
)

const (
	OKFlag = "OK"
	MD5    = "MD5"
	SHA1   = "SHA1"
	SHA256 = "SHA256"
	SHA512 = "SHA512"
)

//DefaultDelimiter field delimiter used when a FileDescriptor sets none
const DefaultDelimiter = ','

//FileDescriptor describes a delimited text resource and how to split it into records
type FileDescriptor struct {
	FileStore FileStorage
	//FileName name of the resource in FileStore, may hold {param} patterns resolved at step start
	FileName string
	//Encoding an IANA or WHATWG encoding name, empty means utf-8
	Encoding string
	//Delimiter single field delimiter, ',' if zero
	Delimiter rune
	//LinesToSkip number of leading physical lines ignored, usually the header
	LinesToSkip int
	//FieldNames the names zipped positionally with the tokens of each line
	FieldNames []string
	//LazyQuotes allow quotes to appear in unquoted fields
	LazyQuotes bool
	//Checksum one of OK, MD5, SHA1, SHA256, SHA512, verified before reading when set
	Checksum string
}

func (fd FileDescriptor) String() string {
	return fmt.Sprintf("%v://%s", fd.FileStore, fd.FileName)
}

func (fd FileDescriptor) delimiter() rune {
	if fd.Delimiter == 0 {
		return DefaultDelimiter
	}
	return fd.Delimiter
}

//FileStorage a place readable text resources live in
type FileStorage interface {
	Exists(fileName string) (ok bool, err error)
	Open(fileName string) (reader io.ReadCloser, err error)
	Create(fileName string) (writer io.WriteCloser, err error)
}

type ChecksumVerifier interface {
	Verify(fd FileDescriptor) (bool, error)
}

type ChecksumFlusher interface {
	Checksum(fd FileDescriptor) error
}

type Checksumer interface {
	ChecksumVerifier
	ChecksumFlusher
}
