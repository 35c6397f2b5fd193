package main

import (
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ndlib/imageloader/store"
)

// splitBucketPrefix will take a path and separate the bucket name from a prefix, if any.
// It will also append "addtion" to the prefix, and make sure the prefix returned is
// either empty or ends with a slash "/".
//
// examples:
// 		"" -> ("", "")
//		"bucket" -> ("bucket", "")
//		"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string, addition string) (bucket, prefix string) {
	if location == "" {
		return
	}
	location = strings.TrimPrefix(location, "/")
	v := strings.SplitN(location, "/", 2)
	bucket = v[0]
	if len(v) > 1 {
		prefix = v[1]
	}
	if addition != "" {
		prefix = path.Join(prefix, addition)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return
}

// parselocation will create an approprate store based on "location".
// In case of an error, nil is returned.
// If location is empty or "memory", a memory store is returned, and nothing
// is kept across restarts. It understands the special scheme "s3:".
func parselocation(location string, addition string) store.Store {
	if location == "" || location == "memory" {
		return store.NewMemory()
	}
	u, err := url.Parse(location)
	if err != nil {
		log.Println("Problem parsing location", location, err)
		return nil
	}
	switch u.Scheme {
	case "", "file":
		p := u.Path
		if p == "" {
			// "file:rel/path" puts the path in Opaque
			p = u.Opaque
		}
		p = filepath.Join(p, addition)
		os.MkdirAll(p, 0755)
		return store.NewFileSystem(p)
	case "s3":
		conf := &aws.Config{}
		if u.Host != "" {
			conf.Endpoint = aws.String(u.Host)
			conf.Region = aws.String("us-east-1")
			// disable SSL for local development
			if strings.Contains(u.Host, "localhost") {
				conf.DisableSSL = aws.Bool(true)
				conf.S3ForcePathStyle = aws.Bool(true)
			}
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		bucket, prefix := splitBucketPrefix(p, addition)
		if bucket == "" {
			log.Println("Error parsing location, no bucket name", location)
			return nil
		}
		return store.NewS3(bucket, prefix, session.New(conf))
	}
	// there was some kind of error.
	log.Println("Problem parsing location", location)
	return nil
}

// localdir returns the local directory named by location, or "" if
// location is not on the local file system.
func localdir(location string) string {
	if location == "" || location == "memory" {
		return ""
	}
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "", "file":
		if u.Path == "" {
			return u.Opaque
		}
		return u.Path
	}
	return ""
}
