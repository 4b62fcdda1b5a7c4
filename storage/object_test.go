package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linkup/errors"

	"github.com/stretchr/testify/require"
)

// Smallest valid PNG header followed by padding; enough for sniffing
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)

func TestDiskStorage_Upload_Png(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	store, err := NewDiskStorage(dir, "/attachments/")
	req.NoError(err)

	ref, err := store.Upload(pngBytes)
	req.NoError(err)
	req.NotEmpty(ref.StorageID)
	req.True(strings.HasPrefix(ref.URL, "/attachments/"))
	req.True(strings.HasSuffix(ref.URL, ".png"))

	// The blob landed on disk under the storage ID
	stored, err := os.ReadFile(filepath.Join(dir, ref.StorageID+".png"))
	req.NoError(err)
	req.Equal(pngBytes, stored)
}

func TestDiskStorage_Rejects_Non_Image(t *testing.T) {
	req := require.New(t)
	store, err := NewDiskStorage(t.TempDir(), "/attachments")
	req.NoError(err)

	_, err = store.Upload([]byte("#!/bin/sh\nrm -rf /\n"))
	req.ErrorIs(err, errors.ErrUnsupportedAttachment)
}
