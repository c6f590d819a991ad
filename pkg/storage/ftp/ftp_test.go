package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/config"
)

func TestNewClientRequiresHost(t *testing.T) {
	prev := config.CFG.Storage.FTP
	config.CFG.Storage.FTP = config.FTPStorageConfig{}
	t.Cleanup(func() { config.CFG.Storage.FTP = prev })

	_, err := NewClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp host is not configured")
}

func TestNewClientCapturesConfig(t *testing.T) {
	prev := config.CFG.Storage.FTP
	config.CFG.Storage.FTP = config.FTPStorageConfig{
		Host:      "ftp.example.com",
		Port:      2121,
		Username:  "backup",
		Password:  "secret",
		Directory: "dumps",
	}
	t.Cleanup(func() { config.CFG.Storage.FTP = prev })

	client, err := NewClient()
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.com", client.cfg.Host)
	assert.Equal(t, 2121, client.cfg.Port)
	assert.Equal(t, "dumps", client.cfg.Directory)
}
