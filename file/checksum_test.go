package file

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmizerany/assert"
)

func TestChecksumer(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "invoices.csv")
	assert.Equal(t, nil, os.WriteFile(data, []byte("name\nAcme\n"), 0644))
	fd := FileDescriptor{FileStore: &LocalFileSystem{}, FileName: data}

	for _, alg := range []string{OKFlag, MD5, SHA1, SHA256, SHA512} {
		ch := GetChecksumer(alg)
		ok, err := ch.Verify(fd)
		assert.Equal(t, nil, err)
		assert.Equal(t, false, ok, alg)
		assert.Equal(t, nil, ch.Checksum(fd))
		ok, err = ch.Verify(fd)
		assert.Equal(t, nil, err)
		assert.Equal(t, true, ok, alg)
	}
}

func TestDigestChecksumer_Mismatch(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "invoices.csv")
	assert.Equal(t, nil, os.WriteFile(data, []byte("name\nAcme\n"), 0644))
	fd := FileDescriptor{FileStore: &LocalFileSystem{}, FileName: data}

	sum := fmt.Sprintf("%X  invoices.csv\n", md5.Sum([]byte("name\nAcme\n")))
	assert.Equal(t, nil, os.WriteFile(filepath.Join(dir, "invoices.MD5"), []byte(sum), 0644))
	ok, err := GetChecksumer("md5").Verify(fd)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)

	assert.Equal(t, nil, os.WriteFile(filepath.Join(dir, "invoices.csv.md5"), []byte("0123"), 0644))
	ok, err = GetChecksumer(MD5).Verify(fd)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)

	assert.Equal(t, nil, GetChecksumer("CRC32"))
}
