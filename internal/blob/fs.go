package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Filesystem stores artifacts as files under a root directory. Content
// type and user metadata live in a `.meta` sidecar next to each file.
type Filesystem struct {
	root string
}

// NewFilesystem returns a store rooted at path, creating it if needed.
// Empty path defaults to ./exportdata.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./exportdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

// Root returns the store's base directory.
func (f *Filesystem) Root() string { return f.root }

type fsMeta struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// sanitizeKey rejects keys that would escape the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}

func (f *Filesystem) paths(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(f.root, filepath.FromSlash(k))
	return dataPath, dataPath + ".meta", nil
}

func (f *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, err
	}

	file, err := os.OpenFile(dataPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Info{}, err
	}
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), r)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dataPath)
		return Info{}, err
	}

	meta := fsMeta{
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(hasher.Sum(nil)),
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(meta)
	if err == nil {
		err = os.WriteFile(metaPath, data, 0o644)
	}
	if err != nil {
		os.Remove(dataPath)
		return Info{}, err
	}
	return f.infoFor(key, dataPath, meta), nil
}

func (f *Filesystem) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := f.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	dataPath, _, err := f.paths(key)
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return Info{}, nil, err
	}
	return info, file, nil
}

func (f *Filesystem) Head(_ context.Context, key string) (Info, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err != nil {
		return Info{}, fmt.Errorf("blob %s not found", key)
	}
	meta := f.readMeta(metaPath)
	return f.infoFor(key, dataPath, meta), nil
}

func (f *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := f.paths(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); err != nil {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	os.Remove(metaPath)
	return true, nil
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".meta") {
			return err
		}
		rel, relErr := filepath.Rel(f.root, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta := f.readMeta(path + ".meta")
		out = append(out, f.infoFor(key, path, meta))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *Filesystem) PresignURL(_ context.Context, _ string, _ SignedURLOptions) (string, error) {
	return "", ErrUnsupported
}

func (f *Filesystem) readMeta(metaPath string) fsMeta {
	var meta fsMeta
	if data, err := os.ReadFile(metaPath); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	return meta
}

func (f *Filesystem) infoFor(key, dataPath string, meta fsMeta) Info {
	info := Info{
		Key:         key,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		ETag:        meta.ETag,
		Metadata:    cloneMetadata(meta.Metadata),
	}
	if st, err := os.Stat(dataPath); err == nil {
		info.Size = st.Size()
		info.LastModified = st.ModTime().UTC()
	}
	return info
}
