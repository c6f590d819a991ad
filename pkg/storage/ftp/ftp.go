// Package ftp stores backup artifacts on an FTP server.
package ftp

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/supporttools/GoDBVault/pkg/config"
)

// dialTimeout bounds the control-connection handshake.
const dialTimeout = 30 * time.Second

// Client represents an FTP storage client
type Client struct {
	cfg config.FTPStorageConfig
}

// NewClient creates a new FTP storage client
func NewClient() (*Client, error) {
	if config.CFG.Storage.FTP.Host == "" {
		return nil, fmt.Errorf("ftp host is not configured")
	}

	return &Client{cfg: config.CFG.Storage.FTP}, nil
}

// connect dials and authenticates a fresh control connection. Every
// operation gets its own connection so a dropped control channel never
// strands the backend; callers must Quit when done.
func (c *Client) connect() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server %s: %w", addr, err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("FTP login failed: %w", err)
	}

	if c.cfg.Directory != "" {
		if err := conn.ChangeDir(c.cfg.Directory); err != nil {
			conn.Quit()
			return nil, fmt.Errorf("failed to change to FTP directory %s: %w", c.cfg.Directory, err)
		}
	}

	return conn, nil
}

// Upload stores the file at localPath on the server under name.
func (c *Client) Upload(localPath, name string) (string, error) {
	conn, err := c.connect()
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open backup file for FTP upload: %w", err)
	}
	defer file.Close()

	if err := conn.Stor(name, file); err != nil {
		return "", fmt.Errorf("FTP upload failed: %w", err)
	}

	return name, nil
}

// Download retrieves a stored artifact into localPath.
func (c *Client) Download(name, localPath string) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Quit()

	resp, err := conn.Retr(name)
	if err != nil {
		return fmt.Errorf("FTP download failed: %w", err)
	}
	defer resp.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create download file: %w", err)
	}

	if _, err := io.Copy(out, resp); err != nil {
		out.Close()
		return fmt.Errorf("failed to write downloaded backup: %w", err)
	}

	return out.Close()
}

// List returns stored artifact names in descending order.
func (c *Client) List() ([]string, error) {
	conn, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	names, err := conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("failed to list FTP directory: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Delete removes a stored artifact from the server.
func (c *Client) Delete(name string) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.Delete(name); err != nil {
		return fmt.Errorf("failed to delete FTP file %s: %w", name, err)
	}

	return nil
}
