// Package adls implements sink.Store on Azure Data Lake Storage Gen2.
package adls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/datalakeerror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/filesystem"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/service"

	"github.com/miladsoleymani/lakesink/sink"
)

// DefaultFileSystem is the filesystem (container) written to when none is set.
const DefaultFileSystem = "sample_file_system"

// Config holds the storage account settings.
type Config struct {
	AccountName string
	AccountKey  string
	FileSystem  string

	// Endpoint overrides the service URL, e.g. for the Azurite emulator.
	// Defaults to https://<account>.dfs.core.windows.net.
	Endpoint string
}

// ServiceURL returns the Data Lake endpoint for the account.
func (c Config) ServiceURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.dfs.core.windows.net", c.AccountName)
}

// Store writes to a single Data Lake filesystem using a shared-key credential.
type Store struct {
	fs   *filesystem.Client
	name string
}

var _ sink.Store = (*Store)(nil)

// New builds a Store. No request is made until the first call; use Ping to
// check the account and filesystem.
func New(cfg Config) (*Store, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.New("adls: account name and key are required")
	}
	if cfg.FileSystem == "" {
		cfg.FileSystem = DefaultFileSystem
	}

	cred, err := azdatalake.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("adls: shared key credential: %w", err)
	}
	svc, err := service.NewClientWithSharedKeyCredential(cfg.ServiceURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("adls: service client for %q: %w", cfg.ServiceURL(), err)
	}
	return &Store{fs: svc.NewFileSystemClient(cfg.FileSystem), name: cfg.FileSystem}, nil
}

// FileSystem returns the name of the filesystem written to.
func (s *Store) FileSystem() string { return s.name }

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.fs.GetProperties(ctx, nil); err != nil {
		return mapError("filesystem "+s.name, err)
	}
	return nil
}

func (s *Store) DirectoryExists(ctx context.Context, dir string) (bool, error) {
	_, err := s.fs.NewDirectoryClient(dir).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if err = mapError(dir, err); errors.Is(err, sink.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Store) CreateDirectory(ctx context.Context, dir string) error {
	if _, err := s.fs.NewDirectoryClient(dir).Create(ctx, nil); err != nil {
		return mapError(dir, err)
	}
	return nil
}

func (s *Store) FileSize(ctx context.Context, path string) (int64, error) {
	resp, err := s.fs.NewFileClient(path).GetProperties(ctx, nil)
	if err != nil {
		return 0, mapError(path, err)
	}
	if resp.ContentLength == nil {
		return 0, fmt.Errorf("adls: %q: no content length in response", path)
	}
	return *resp.ContentLength, nil
}

// CreateFile creates path only if nothing exists there yet.
func (s *Store) CreateFile(ctx context.Context, path string) error {
	opts := &file.CreateOptions{
		AccessConditions: &file.AccessConditions{
			ModifiedAccessConditions: &file.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	}
	if _, err := s.fs.NewFileClient(path).Create(ctx, opts); err != nil {
		return mapError(path, err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, path string, offset int64, data []byte) error {
	body := streaming.NopCloser(bytes.NewReader(data))
	if _, err := s.fs.NewFileClient(path).AppendData(ctx, offset, body, nil); err != nil {
		return mapError(path, err)
	}
	return nil
}

func (s *Store) Flush(ctx context.Context, path string, length int64) error {
	if _, err := s.fs.NewFileClient(path).FlushData(ctx, length, nil); err != nil {
		return mapError(path, err)
	}
	return nil
}

// mapError translates service responses onto the sink error set. Anything
// unrecognized is returned wrapped but untyped, and treated as transient.
func mapError(path string, err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return fmt.Errorf("adls: %q: %w", path, err)
	}

	var typed error
	switch {
	case datalakeerror.HasCode(err, datalakeerror.PathAlreadyExists):
		typed = sink.ErrAlreadyExists
	case respErr.StatusCode == http.StatusConflict && respErr.ErrorCode == "",
		respErr.StatusCode == http.StatusPreconditionFailed:
		// If-None-Match rejected without an error body
		typed = sink.ErrAlreadyExists
	case respErr.StatusCode == http.StatusNotFound:
		typed = sink.ErrNotFound
	case respErr.StatusCode == http.StatusForbidden:
		typed = sink.ErrPermission
	default:
		return fmt.Errorf("adls: %q: %w", path, err)
	}
	return fmt.Errorf("adls: %q: %w: %w", path, typed, err)
}
