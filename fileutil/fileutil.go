// Package fileutil holds the file-transfer helpers shared by the environment
// providers: progress and cancellation aware copying, temporary sibling names
// for atomic replacement, and path traversal checks for directory walks.
package fileutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ruffel/vpsops"
)

// ProgressReader reports the running byte count of an io.Reader to Fn.
// Total is the expected size, or 0 when unknown.
type ProgressReader struct {
	io.Reader

	Total   int64
	Current int64
	Fn      vpsops.ProgressFunc
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.Current += int64(n)
		if pr.Fn != nil {
			pr.Fn(pr.Current, pr.Total)
		}
	}

	return n, err
}

// ContextReader fails reads once Ctx is done, which lets a long io.Copy stop
// on cancellation.
type ContextReader struct {
	Ctx    context.Context //nolint:containedctx
	Reader io.Reader
}

func (cr *ContextReader) Read(p []byte) (int, error) {
	if err := cr.Ctx.Err(); err != nil {
		return 0, err
	}

	return cr.Reader.Read(p)
}

// Copy copies src to dst, stopping when ctx is done and reporting progress to fn
// when it is non-nil.
func Copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, fn vpsops.ProgressFunc) (int64, error) {
	var r io.Reader = &ContextReader{Ctx: ctx, Reader: src}
	if fn != nil {
		r = &ProgressReader{Reader: r, Total: total, Fn: fn}
	}

	return io.Copy(dst, r)
}

// TempSibling returns the name of a temporary file next to target, stamped
// with the Unix time of now. Remote paths always use forward slashes.
func TempSibling(target string, now time.Time) string {
	return target + ".tmp-" + strconv.FormatInt(now.Unix(), 10)
}

// CheckPathTraversal returns an error when target, resolved on the local
// filesystem, is not root itself or inside it.
func CheckPathTraversal(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("illegal file path: cannot resolve root %s: %w", root, err)
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("illegal file path: cannot resolve target %s: %w", target, err)
	}

	if absRoot == absTarget {
		return nil
	}

	if !strings.HasPrefix(absTarget, absRoot+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path: %s is not within %s", target, root)
	}

	return nil
}

// CheckRemotePathTraversal is CheckPathTraversal for remote forward-slash paths.
func CheckRemotePathTraversal(root, target string) error {
	cleanRoot := path.Clean(root)
	cleanTarget := path.Clean(target)

	if cleanRoot == cleanTarget {
		return nil
	}

	if !strings.HasPrefix(cleanTarget, cleanRoot+"/") {
		return fmt.Errorf("illegal remote file path: %s is not within %s", target, root)
	}

	return nil
}
