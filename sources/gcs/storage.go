package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/googlegenomics/cnvview/sources"
)

var errMissingOrInvalidToken = errors.New("missing or invalid bearer token")

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

// List returns the names of the objects in bucket that start with prefix.
func (c GCSClient) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}
	var names []string
	it := c.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return h.ObjectHandle.NewReader(ctx)
}

var (
	defaultStorageClient           *storage.Client
	defaultStorageClientErr        error
	initializeDefaultStorageClient sync.Once
)

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(ctx context.Context) (Client, error) {
	initializeDefaultStorageClient.Do(func() {
		defaultStorageClient, defaultStorageClientErr = storage.NewClient(context.Background())
	})
	if defaultStorageClientErr != nil {
		return nil, fmt.Errorf("creating default storage client: %w", defaultStorageClientErr)
	}
	return GCSClient{defaultStorageClient}, nil
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects.
func NewPublicClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	client, err := storage.NewClient(ctx, append([]option.ClientOption{option.WithoutAuthentication()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating public storage client: %w", err)
	}
	return GCSClient{client}, nil
}

// NewClientFromToken returns a storage client that authorizes its requests
// with a fixed OAuth2 access token.
func NewClientFromToken(ctx context.Context, accessToken string) (Client, error) {
	if accessToken == "" {
		return nil, errMissingOrInvalidToken
	}
	token := oauth2.Token{
		TokenType:   "Bearer",
		AccessToken: accessToken,
	}
	client, err := storage.NewClient(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating client with token source: %v", err)
	}
	return GCSClient{client}, nil
}

// NewClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.
func NewClientFromBearerToken(req *http.Request) (Client, error) {
	fields := strings.Split(req.Header.Get("Authorization"), " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, newStorageError("reading authorization", errMissingOrInvalidToken)
	}
	return NewClientFromToken(req.Context(), fields[1])
}

// newStorageError maps err onto the sources error taxonomy while keeping
// the original error in the chain.
func newStorageError(context string, err error) error {
	if err == errMissingOrInvalidToken {
		return fmt.Errorf("%s: %w: %w", context, sources.ErrPermissionDenied, err)
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s: %w: %w", context, sources.ErrNotExist, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %w", context, sources.ErrUnauthenticated, err)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", context, sources.ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", context, sources.ErrNotExist, err)
		}
	}
	return fmt.Errorf("%s: %w", context, err)
}
