package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, appErr.Configuration("local store dir is required")
	}
	return &localStore{dir: config.Dir}, nil
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return nil, appErr.Invalid("invalid file key: %q", key)
	}
	f, err := os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
