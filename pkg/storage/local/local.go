// Package local stores backup artifacts on the local filesystem.
package local

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/supporttools/GoDBVault/pkg/config"
)

// Client represents a local filesystem storage client
type Client struct {
	dir string
}

// NewClient creates a new local storage client rooted at the configured
// directory. The directory is created lazily on first upload, not here, so a
// read-only deployment can still list and download.
func NewClient() (*Client, error) {
	dir := config.CFG.Storage.Local.Directory
	if dir == "" {
		return nil, fmt.Errorf("local backup directory is not configured")
	}

	return &Client{dir: dir}, nil
}

// Upload copies the file at localPath into the backup directory under name.
func (c *Client) Upload(localPath, name string) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory %s: %w", c.dir, err)
	}

	if err := copyFile(localPath, filepath.Join(c.dir, name)); err != nil {
		return "", fmt.Errorf("failed to store backup %s: %w", name, err)
	}

	return name, nil
}

// Download copies a stored artifact to localPath.
func (c *Client) Download(name, localPath string) error {
	source := filepath.Join(c.dir, name)
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("backup %s not found: %w", name, err)
	}

	if err := copyFile(source, localPath); err != nil {
		return fmt.Errorf("failed to retrieve backup %s: %w", name, err)
	}

	return nil
}

// List returns stored artifact names in descending order. A missing backup
// directory means nothing has been stored yet, not an error.
func (c *Client) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list backup directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Delete removes a stored artifact. Deleting an artifact that is already
// gone is not an error.
func (c *Client) Delete(name string) error {
	err := os.Remove(filepath.Join(c.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup %s: %w", name, err)
	}

	return nil
}

// Path returns the absolute location of a stored artifact. Callers use it to
// stream downloads without copying through a temp file.
func (c *Client) Path(name string) string {
	return filepath.Join(c.dir, name)
}

// copyFile copies src to dst, replacing dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
