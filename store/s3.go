package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
)

// A S3 store represents a store that is kept on AWS S3 storage. It lets
// several image loaders share one persisted cache tier.
// Do not change Bucket or Prefix concurrently with calls using the structure.
//
// Cached images are small, so objects are read in a single GET and written in
// a single PUT. A PUT is atomic, so readers never see a partial object.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
}

var (
	_ Store   = &S3{}
	_ Aborter = &s3WriteCloser{}
)

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. This is to allow for a bucket to be used for more than
// one store. For example if prefix were "cache/" then an Open("hello") would
// look for the key "cache/hello" in the bucket. The authorization method and
// credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
	}
}

// List returns a list of all the keys in this store. It will only return ones
// that satisfy the store's Prefix, so it is safe to use this on a bucket
// containing other items.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(s.Bucket),
			Prefix: aws.String(s.Prefix),
		}
		err := s.svc.ListObjectsV2Pages(input,
			func(page *s3.ListObjectsV2Output, lastpage bool) bool {
				for _, item := range page.Contents {
					out <- strings.TrimPrefix(*item.Key, s.Prefix)
				}
				return !lastpage
			})
		if err != nil {
			log.Println("S3 List:", s.Prefix, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
		}
	}()
	return out
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		log.Println("S3 ListPrefix:", s.Prefix, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Pattern": prefix})
	}
	return result, err
}

// Open downloads the content for the given key. A missing key returns
// ErrNotExist.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	output, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, ErrNotExist
		}
		log.Println("S3 Open:", s.Prefix, key, err)
		return nil, 0, err
	}
	defer output.Body.Close()
	data, err := ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, 0, err
	}
	return &memReader{b: data}, int64(len(data)), nil
}

// Create will return a WriteCloser to upload content to the given key. The
// content is buffered and sent when the writer is closed.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	exists, err := s.exists(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrKeyExists
	}
	return &s3WriteCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
	}, nil
}

// Delete will remove the given key from the store. The store's Prefix is
// prepended first. It is not an error to delete something that doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	}
	return err
}

// exists issues a HEAD request for the key.
func (s *S3) exists(key string) (bool, error) {
	_, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return true
	}
	if e, ok := err.(awserr.Error); ok && e.Code() == s3.ErrCodeNoSuchKey {
		return true
	}
	return false
}

type s3WriteCloser struct {
	svc    *s3.S3
	bucket string
	key    string
	buf    bytes.Buffer
}

func (wc *s3WriteCloser) Write(p []byte) (int, error) {
	return wc.buf.Write(p)
}

// Abort drops the buffer without uploading it.
func (wc *s3WriteCloser) Abort() error {
	wc.buf.Reset()
	return nil
}

func (wc *s3WriteCloser) Close() error {
	source := bytes.NewReader(wc.buf.Bytes()) // need Seek()
	_, err := wc.svc.PutObject(&s3.PutObjectInput{
		Body:          source,
		Bucket:        aws.String(wc.bucket),
		Key:           aws.String(wc.key),
		ContentLength: aws.Int64(int64(source.Len())),
		ContentType:   aws.String("image/jpeg"),
	})
	if err != nil {
		log.Println("S3 Close:", wc.key, err)
		raven.CaptureError(err, map[string]string{"Bucket": wc.bucket, "Key": wc.key})
	}
	return err
}
