// Package keygen creates the ed25519 key pair a CI pipeline uses to log in as
// the deploy user.
package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

const (
	PrivateMode fs.FileMode = 0o600
	PublicMode  fs.FileMode = 0o644
)

// ErrKeyExists is returned when either file of the pair is already present.
var ErrKeyExists = errors.New("key files already exist")

// Pair describes a generated key pair.
type Pair struct {
	PrivatePath   string
	PublicPath    string
	AuthorizedKey string // "ssh-ed25519 AAAA... comment"
	Fingerprint   string // SHA256:...
}

// Generate writes dir/name (OpenSSH private key, unencrypted) and
// dir/name.pub. dir is created when missing.
func Generate(dir, name, comment string) (Pair, error) {
	p := Pair{
		PrivatePath: filepath.Join(dir, name),
		PublicPath:  filepath.Join(dir, name+".pub"),
	}

	for _, f := range []string{p.PrivatePath, p.PublicPath} {
		if _, err := os.Lstat(f); err == nil {
			return Pair{}, fmt.Errorf("%w: %s", ErrKeyExists, f)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Pair{}, fmt.Errorf("generate key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return Pair{}, fmt.Errorf("encode private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return Pair{}, fmt.Errorf("encode public key: %w", err)
	}

	p.AuthorizedKey = AuthorizedLine(sshPub, comment)
	p.Fingerprint = ssh.FingerprintSHA256(sshPub)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Pair{}, err
	}

	if err := create(p.PrivatePath, pem.EncodeToMemory(block), PrivateMode); err != nil {
		return Pair{}, err
	}

	if err := create(p.PublicPath, []byte(p.AuthorizedKey+"\n"), PublicMode); err != nil {
		_ = os.Remove(p.PrivatePath)

		return Pair{}, err
	}

	return p, nil
}

// AuthorizedLine formats key as an authorized_keys line without the newline.
func AuthorizedLine(key ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	if comment = strings.TrimSpace(comment); comment != "" {
		line += " " + comment
	}

	return line
}

// ParseAuthorized validates an authorized_keys line and returns it trimmed.
func ParseAuthorized(data []byte) (string, error) {
	if _, _, _, _, err := ssh.ParseAuthorizedKey(data); err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func create(path string, data []byte, mode fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeyExists, path)
	}

	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}
