package file

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
)

//OKFlagChecksumer treats an empty <file>.ok or <file without extension>.ok next to the data file as proof it is complete
type OKFlagChecksumer struct{}

func (ch *OKFlagChecksumer) Verify(fd FileDescriptor) (bool, error) {
	if ok, err := fd.FileStore.Exists(fd.FileName); err != nil || !ok {
		return false, err
	}
	_, ok, err := findSibling(fd.FileStore, fd.FileName, "ok")
	return ok, err
}

func (ch *OKFlagChecksumer) Checksum(fd FileDescriptor) error {
	w, err := fd.FileStore.Create(fd.FileName + ".ok")
	if err != nil {
		return errors.Wrapf(err, "create ok flag of file:%v", fd.FileName)
	}
	return w.Close()
}

//DigestChecksumer compares the hex digest of the data file with the first word of its check file.
//The check file is <file>.<alg> or <file without extension>.<alg>, alg in lower or upper case.
type DigestChecksumer struct {
	Alg     string
	NewHash func() hash.Hash
}

func (ch *DigestChecksumer) Verify(fd FileDescriptor) (bool, error) {
	if ok, err := fd.FileStore.Exists(fd.FileName); err != nil || !ok {
		return false, err
	}
	checkFile, ok, err := findSibling(fd.FileStore, fd.FileName, ch.Alg)
	if err != nil || !ok {
		return false, err
	}
	expected, err := readFirstWord(fd.FileStore, checkFile)
	if err != nil {
		return false, err
	}
	actual, err := ch.digest(fd)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(expected, actual), nil
}

//Checksum writes the digest of the data file to <file>.<alg>
func (ch *DigestChecksumer) Checksum(fd FileDescriptor) error {
	sum, err := ch.digest(fd)
	if err != nil {
		return err
	}
	checkFile := fd.FileName + "." + strings.ToLower(ch.Alg)
	w, err := fd.FileStore.Create(checkFile)
	if err != nil {
		return errors.Wrapf(err, "create check file:%v", checkFile)
	}
	if _, err = io.WriteString(w, sum); err != nil {
		w.Close()
		return errors.Wrapf(err, "write check file:%v", checkFile)
	}
	return w.Close()
}

func (ch *DigestChecksumer) digest(fd FileDescriptor) (string, error) {
	r, err := fd.FileStore.Open(fd.FileName)
	if err != nil {
		return "", errors.Wrapf(err, "open file:%v", fd.FileName)
	}
	defer r.Close()
	h := ch.NewHash()
	if _, err = io.Copy(h, r); err != nil {
		return "", errors.Wrapf(err, "digest file:%v", fd.FileName)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readFirstWord(fs FileStorage, fileName string) (string, error) {
	r, err := fs.Open(fileName)
	if err != nil {
		return "", errors.Wrapf(err, "open check file:%v", fileName)
	}
	defer r.Close()
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(err, "read check file:%v", fileName)
	}
	if fields := strings.Fields(string(buf)); len(fields) > 0 {
		return fields[0], nil
	}
	return "", nil
}

func findSibling(fs FileStorage, fileName string, ext string) (string, bool, error) {
	bases := []string{fileName}
	if dotIdx := strings.LastIndex(fileName, "."); dotIdx > 0 {
		bases = append(bases, fileName[:dotIdx])
	}
	for _, base := range bases {
		for _, e := range []string{strings.ToLower(ext), strings.ToUpper(ext)} {
			name := base + "." + e
			ok, err := fs.Exists(name)
			if err != nil {
				return "", false, err
			}
			if ok {
				return name, true, nil
			}
		}
	}
	return "", false, nil
}

var (
	md5Checksumer    = &DigestChecksumer{Alg: MD5, NewHash: md5.New}
	sha1Checksumer   = &DigestChecksumer{Alg: SHA1, NewHash: sha1.New}
	sha256Checksumer = &DigestChecksumer{Alg: SHA256, NewHash: sha256.New}
	sha512Checksumer = &DigestChecksumer{Alg: SHA512, NewHash: sha512.New}
)
