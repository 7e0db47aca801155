package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/ruffel/vpsops"
	"github.com/ruffel/vpsops/fileutil"
)

// openSFTP starts an SFTP subsystem on the connection. The returned release
// func closes it and must always be called.
func (e *Environment) openSFTP() (*sftp.Client, func(), error) {
	client, err := e.acquire()
	if err != nil {
		return nil, nil, err
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		e.decrementActive()

		return nil, nil, &vpsops.TransportError{Err: fmt.Errorf("failed to create sftp client: %w", err)}
	}

	release := func() {
		_ = sftpClient.Close()

		e.decrementActive()
	}

	return sftpClient, release, nil
}

// ReadFile returns the content of remotePath. A missing file yields an error
// matching fs.ErrNotExist.
func (e *Environment) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	client, release, err := e.openSFTP()
	if err != nil {
		return nil, err
	}

	defer release()

	f, err := client.Open(remotePath)
	if err != nil {
		return nil, err
	}

	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	if _, err := fileutil.Copy(ctx, &buf, f, 0, nil); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteFile writes data to a temporary sibling of remotePath, applies mode and
// ownership, and renames it over the destination. Without WithPermissions the
// destination's current mode is kept, or 0644 for a new file.
func (e *Environment) WriteFile(ctx context.Context, remotePath string, data []byte, opts ...vpsops.FileOption) error {
	cfg := vpsops.NewFileConfig(opts...)

	client, release, err := e.openSFTP()
	if err != nil {
		return err
	}

	defer release()

	mode := cfg.Permissions
	if mode == 0 {
		mode = 0o644
		if info, err := client.Stat(remotePath); err == nil {
			mode = info.Mode().Perm()
		}
	}

	tmp := fileutil.TempSibling(remotePath, time.Now())

	if err := writeRemote(ctx, client, tmp, bytes.NewReader(data), int64(len(data)), mode, cfg); err != nil {
		_ = client.Remove(tmp)

		return err
	}

	if err := replace(client, tmp, remotePath); err != nil {
		_ = client.Remove(tmp)

		return err
	}

	return nil
}

// replace renames tmp over dst, falling back to remove+rename on servers
// without the posix-rename extension.
func replace(client *sftp.Client, tmp, dst string) error {
	if err := client.PosixRename(tmp, dst); err == nil {
		return nil
	}

	if err := client.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", dst, err)
	}

	if err := client.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, dst, err)
	}

	return nil
}

func writeRemote(ctx context.Context, client *sftp.Client, remotePath string, src io.Reader, size int64, mode os.FileMode, cfg vpsops.FileConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", remotePath, err)
	}

	if _, err := fileutil.Copy(ctx, dst, src, size, cfg.Progress); err != nil {
		_ = dst.Close()

		return err
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %q: %w", remotePath, err)
	}

	if err := client.Chmod(remotePath, mode); err != nil {
		return fmt.Errorf("failed to chmod remote file: %w", err)
	}

	return nil
}

// Upload copies a local file or directory to remotePath using SFTP, creating
// missing remote parents.
func (e *Environment) Upload(ctx context.Context, localPath, remotePath string, opts ...vpsops.FileOption) error {
	cfg := vpsops.NewFileConfig(opts...)

	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	client, release, err := e.openSFTP()
	if err != nil {
		return err
	}

	defer release()

	if info.IsDir() {
		if !cfg.Recursive {
			return fmt.Errorf("upload %s: is a directory", localPath)
		}

		return uploadDir(ctx, client, localPath, remotePath, cfg)
	}

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("failed to create remote parent of %s: %w", remotePath, err)
	}

	return uploadFile(ctx, client, localPath, remotePath, info, cfg)
}

func uploadDir(ctx context.Context, client *sftp.Client, localBase, remoteBase string, cfg vpsops.FileConfig) error {
	return filepath.Walk(localBase, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(localBase, p)
		if err != nil {
			return err
		}

		remotePath := path.Join(remoteBase, filepath.ToSlash(relPath))

		if info.IsDir() {
			if err := client.MkdirAll(remotePath); err != nil {
				return err
			}

			if cfg.Permissions != 0 {
				_ = client.Chmod(remotePath, cfg.Permissions)
			}

			return nil
		}

		return uploadFile(ctx, client, p, remotePath, info, cfg)
	})
}

func uploadFile(ctx context.Context, client *sftp.Client, localPath, remotePath string, info os.FileInfo, cfg vpsops.FileConfig) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	mode := info.Mode().Perm()
	if cfg.Permissions != 0 {
		mode = cfg.Permissions
	}

	return writeRemote(ctx, client, remotePath, src, info.Size(), mode, cfg)
}

// Download copies a remote file or directory to localPath using SFTP.
func (e *Environment) Download(ctx context.Context, remotePath, localPath string, opts ...vpsops.FileOption) error {
	cfg := vpsops.NewFileConfig(opts...)

	client, release, err := e.openSFTP()
	if err != nil {
		return err
	}

	defer release()

	info, err := client.Stat(remotePath)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return downloadDir(ctx, client, remotePath, localPath, cfg)
	}

	return downloadFile(ctx, client, remotePath, localPath, info, cfg)
}

func downloadDir(ctx context.Context, client *sftp.Client, remoteBase, localBase string, cfg vpsops.FileConfig) error {
	walker := client.Walk(remoteBase)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return err
		}

		rel, ok := remoteRel(remoteBase, walker.Path())
		if !ok {
			continue
		}

		localPath := filepath.Join(localBase, filepath.FromSlash(rel))
		if err := fileutil.CheckPathTraversal(localBase, localPath); err != nil {
			return err
		}

		info := walker.Stat()

		if info.IsDir() {
			if err := os.MkdirAll(localPath, info.Mode().Perm()|0o700); err != nil {
				return err
			}

			continue
		}

		if err := downloadFile(ctx, client, walker.Path(), localPath, info, cfg); err != nil {
			return err
		}
	}

	return nil
}

func downloadFile(ctx context.Context, client *sftp.Client, remotePath, localPath string, info os.FileInfo, cfg vpsops.FileConfig) error {
	src, err := client.Open(remotePath)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if cfg.Permissions != 0 {
		mode = cfg.Permissions
	}

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := fileutil.Copy(ctx, dst, src, info.Size(), cfg.Progress); err != nil {
		_ = dst.Close()

		return err
	}

	if err := dst.Close(); err != nil {
		return err
	}

	return os.Chmod(localPath, mode)
}

// remoteRel returns p relative to base. The walk root itself and paths outside
// base report false.
func remoteRel(base, p string) (string, bool) {
	cleanBase := path.Clean(base)
	if cleanBase == "/" {
		cleanBase = ""
	}

	cleanPath := path.Clean(p)
	if cleanPath == cleanBase || !strings.HasPrefix(cleanPath, cleanBase+"/") {
		return "", false
	}

	return strings.TrimPrefix(cleanPath, cleanBase+"/"), true
}
