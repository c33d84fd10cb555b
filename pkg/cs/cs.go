// Package cs reads query responses from and writes converted rows to Google
// Cloud Storage.
package cs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Scheme is the URL scheme of Cloud Storage locations.
const Scheme = "gs"

var (
	ErrObjectNotExist = errors.New("object does not exist")
	ErrBucketNotExist = errors.New("bucket does not exist")
	ErrInvalidURL     = errors.New("invalid gs:// url")
)

type Operations interface {
	WriteObject(ctx context.Context, name string, data io.Reader, attrs *Attributes) error
	GetObjects(ctx context.Context, q *Query) ([]*Object, error)
	GetObjectWithData(ctx context.Context, name string) (*ObjectWithData, error)
}

var _ Operations = &Client{}

type Client struct {
	client *storage.Client
	bucket string
}

type Object struct {
	Name   string
	Bucket string
	Attrs  Attributes
}

type ObjectWithData struct {
	*Object
	Data []byte
}

type Attributes struct {
	ContentType     string
	ContentEncoding string
	Size            int64
}

type Query struct {
	Prefix string
}

// URL is a parsed gs://bucket/object location. An Object ending in a slash,
// or an empty one, names a prefix.
type URL struct {
	Bucket string
	Object string
}

func (u *URL) String() string {
	return fmt.Sprintf("%s://%s/%s", Scheme, u.Bucket, u.Object)
}

func (u *URL) IsPrefix() bool {
	return u.Object == "" || strings.HasSuffix(u.Object, "/")
}

// IsURL reports whether s looks like a Cloud Storage location.
func IsURL(s string) bool {
	return strings.HasPrefix(s, Scheme+"://")
}

func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidURL, raw, err)
	}

	if u.Scheme != Scheme || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}

	return &URL{
		Bucket: u.Host,
		Object: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) WriteObject(ctx context.Context, name string, data io.Reader, attrs *Attributes) error {
	obj := c.client.Bucket(c.bucket).Object(name)

	w := obj.NewWriter(ctx)

	if attrs != nil && attrs.ContentType != "" {
		w.ContentType = attrs.ContentType
	}

	if attrs != nil && attrs.ContentEncoding != "" {
		w.ContentEncoding = attrs.ContentEncoding
	}

	_, err := io.Copy(w, data)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object %s: %w", name, err)
	}

	err = w.Close()
	if err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return ErrBucketNotExist
		}

		return fmt.Errorf("closing writer: %w", err)
	}

	return nil
}

// GetObjects lists the objects matching q, sorted by name.
func (c *Client) GetObjects(ctx context.Context, q *Query) ([]*Object, error) {
	objects := []*Object{}

	var query *storage.Query
	if q != nil {
		query = &storage.Query{
			Prefix: q.Prefix,
		}
	}

	it := c.client.Bucket(c.bucket).Objects(ctx, query)
	for {
		obj, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}

			if errors.Is(err, storage.ErrBucketNotExist) {
				return nil, ErrBucketNotExist
			}

			return nil, fmt.Errorf("iterating objects: %w", err)
		}

		// Folder placeholders carry no data.
		if strings.HasSuffix(obj.Name, "/") {
			continue
		}

		objects = append(objects, &Object{
			Name:   obj.Name,
			Bucket: obj.Bucket,
			Attrs: Attributes{
				ContentType:     obj.ContentType,
				ContentEncoding: obj.ContentEncoding,
				Size:            obj.Size,
			},
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Name < objects[j].Name
	})

	return objects, nil
}

func (c *Client) GetObjectWithData(ctx context.Context, name string) (*ObjectWithData, error) {
	obj := c.client.Bucket(c.bucket).Object(name)

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotExist
		}

		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, ErrBucketNotExist
		}

		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object: %w", err)
	}

	return &ObjectWithData{
		Object: &Object{
			Name:   obj.ObjectName(),
			Bucket: obj.BucketName(),
			Attrs: Attributes{
				ContentType:     r.Attrs.ContentType,
				ContentEncoding: r.Attrs.ContentEncoding,
				Size:            r.Attrs.Size,
			},
		},
		Data: data,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Options returns the client options for an endpoint override and for
// disabling authentication, as used against emulators.
func Options(endpoint string, enableAuthentication bool) []option.ClientOption {
	var options []option.ClientOption

	if endpoint != "" {
		options = append(options, option.WithEndpoint(endpoint))
	}

	if !enableAuthentication {
		options = append(options, option.WithoutAuthentication())
	}

	return options
}

func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Client, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &Client{
		client: client,
		bucket: bucket,
	}, nil
}

func NewFromClient(bucket string, client *storage.Client) *Client {
	return &Client{
		client: client,
		bucket: bucket,
	}
}
