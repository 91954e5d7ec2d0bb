package t2d2

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

const downloadsFolder = "downloads"

// GetAssets fetches asset records by id. No request is made for empty ids.
func (c *Client) GetAssets(ctx context.Context, assetType AssetType, ids []int64) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}
	payload := map[string]any{"asset_type": assetType, "asset_ids": ids}
	return c.callDataList(ctx, http.MethodPost, projectPath(pid, "assets"), nil, payload)
}

// AddAssets registers already-stored assets with the active project.
func (c *Client) AddAssets(ctx context.Context, payload Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	return c.callRecord(ctx, http.MethodPost, projectPath(pid, "assets/bulk.create"), nil, payload)
}

// DownloadAssets stores the given assets under dir and returns the local path
// of each. Files are named img_<id><ext> unless originalFilename is set.
func (c *Client) DownloadAssets(ctx context.Context, ids []int64, assetType AssetType, dir string, originalFilename bool) (map[int64]string, error) {
	assets, err := c.GetAssets(ctx, assetType, ids)
	if err != nil {
		return nil, err
	}
	if len(assets) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d assets", ErrNotFound, len(ids)-len(assets), len(ids))
	}
	if len(assets) == 0 {
		return map[int64]string{}, nil
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("t2d2: create download dir: %w", err)
	}
	store, err := c.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(assets))
	for _, asset := range assets {
		name := filepath.Base(asset.String("filename"))
		if !originalFilename {
			name = fmt.Sprintf("img_%d%s", asset.ID(), filepath.Ext(name))
		}
		target := filepath.Join(dir, name)
		if err := downloadObject(ctx, store, asset.String("url"), target); err != nil {
			return nil, fmt.Errorf("t2d2: download asset %d: %w", asset.ID(), err)
		}
		out[asset.ID()] = target
	}
	return out, nil
}

func downloadObject(ctx context.Context, store storage.Store, objectURL, target string) error {
	bucket, key, err := storage.ParseObjectURL(objectURL)
	if err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := store.Get(ctx, bucket, key, f); err != nil {
		f.Close()
		_ = os.Remove(target)
		return err
	}
	return f.Close()
}

// UploadDownloads places files in the project's downloads folder under their
// original names and returns the object URLs.
func (c *Client) UploadDownloads(ctx context.Context, paths []string) ([]string, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	files, err := statFiles(paths)
	if err != nil {
		return nil, err
	}
	bucket, baseURL, err := c.uploadTarget()
	if err != nil {
		return nil, err
	}
	store, err := c.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := fmt.Sprintf("projects/%d/%s/%s", pid, downloadsFolder, f.name)
		if err := putFile(ctx, store, bucket, key, f); err != nil {
			return nil, err
		}
		urls = append(urls, baseURL+"/"+key)
	}
	return urls, nil
}

type localFile struct {
	path string
	name string
	base string
	ext  string
	size int64
}

// statFiles checks every path before anything is uploaded.
func statFiles(paths []string) ([]localFile, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrInvalidArgument)
	}
	files := make([]localFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("t2d2: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, p)
		}
		name := filepath.Base(p)
		ext := filepath.Ext(name)
		files = append(files, localFile{
			path: p,
			name: name,
			base: strings.TrimSuffix(name, ext),
			ext:  ext,
			size: info.Size(),
		})
	}
	return files, nil
}

func putFile(ctx context.Context, store storage.Store, bucket, key string, f localFile) error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("t2d2: %w", err)
	}
	defer fh.Close()
	if err := store.Put(ctx, bucket, key, fh, f.size, mime.TypeByExtension(f.ext)); err != nil {
		return fmt.Errorf("t2d2: upload %s: %w", f.path, err)
	}
	return nil
}

// uploadAssets stores files under projects/<pid>/<folder>/ with a random
// suffix and returns the asset entries for bulk.create.
func (c *Client) uploadAssets(ctx context.Context, pid int64, folder string, files []localFile) ([]Record, error) {
	bucket, _, err := c.uploadTarget()
	if err != nil {
		return nil, err
	}
	store, err := c.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	assets := make([]Record, 0, len(files))
	for _, f := range files {
		stored := fmt.Sprintf("%s_%s%s", f.base, randomSuffix(6), f.ext)
		key := fmt.Sprintf("projects/%d/%s/%s", pid, folder, stored)
		if err := putFile(ctx, store, bucket, key, f); err != nil {
			return nil, err
		}
		c.logger.Debug("asset stored", zap.String("key", key), zap.Int64("size_bytes", f.size))
		assets = append(assets, Record{
			"name":     f.base,
			"filename": f.name,
			"url":      stored,
			"size":     Record{"filesize": f.size},
		})
	}
	return assets, nil
}

// uploadTarget returns the bucket and base URL of the active project.
func (c *Client) uploadTarget() (bucket, baseURL string, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.project == nil {
		return "", "", ErrProjectNotSet
	}
	if c.bucket == "" {
		return "", "", fmt.Errorf("t2d2: project %d has no s3_base_url configured", c.project.ID())
	}
	return c.bucket, c.s3BaseURL, nil
}

// objectStore returns the configured store, building an S3 store from the
// project region on first use.
func (c *Client) objectStore(ctx context.Context) (storage.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}
	if c.project == nil {
		return nil, ErrProjectNotSet
	}
	cfg := storage.S3Config{PublicRead: true}
	if c.s3 != nil {
		cfg = *c.s3
	}
	if cfg.Region == "" {
		cfg.Region = c.region
	}
	store, err := storage.NewS3Store(ctx, cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("t2d2: %w", err)
	}
	c.store = store
	c.ownStore = true
	return store, nil
}
