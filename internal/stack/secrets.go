package stack

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/ruffel/vpsops/envfile"
)

// Secrets are the generated credentials of a deployment.
type Secrets struct {
	NextAuthSecret     string
	Salt               string
	EncryptionKey      string // 64 hex characters
	PostgresPassword   string
	RedisAuth          string
	ClickhousePassword string
	MinioRootPassword  string
}

// fields maps each .env key to the Secrets field holding it.
func (s *Secrets) fields() map[string]*string {
	return map[string]*string{
		"NEXTAUTH_SECRET":     &s.NextAuthSecret,
		"SALT":                &s.Salt,
		"ENCRYPTION_KEY":      &s.EncryptionKey,
		"POSTGRES_PASSWORD":   &s.PostgresPassword,
		"REDIS_AUTH":          &s.RedisAuth,
		"CLICKHOUSE_PASSWORD": &s.ClickhousePassword,
		"MINIO_ROOT_PASSWORD": &s.MinioRootPassword,
	}
}

// NewSecrets draws fresh secrets from r, or crypto/rand.Reader when r is nil.
// Passwords use URL-safe base64 because they are embedded in DATABASE_URL.
func NewSecrets(r io.Reader) (Secrets, error) {
	if r == nil {
		r = rand.Reader
	}

	g := &generator{r: r}

	s := Secrets{
		NextAuthSecret:     base64.StdEncoding.EncodeToString(g.bytes(32)),
		Salt:               base64.StdEncoding.EncodeToString(g.bytes(32)),
		EncryptionKey:      hex.EncodeToString(g.bytes(32)),
		PostgresPassword:   g.password(),
		RedisAuth:          g.password(),
		ClickhousePassword: g.password(),
		MinioRootPassword:  g.password(),
	}

	if g.err != nil {
		return Secrets{}, fmt.Errorf("generate secrets: %w", g.err)
	}

	return s, nil
}

// generator keeps the first read error; later reads are no-ops.
type generator struct {
	r   io.Reader
	err error
}

func (g *generator) bytes(n int) []byte {
	b := make([]byte, n)
	if g.err == nil {
		_, g.err = io.ReadFull(g.r, b)
	}

	return b
}

func (g *generator) password() string {
	return base64.RawURLEncoding.EncodeToString(g.bytes(24))
}

// ReuseSecrets reads the secrets of an existing .env. It reports false unless
// every secret is present and non-empty, in which case the caller should
// generate a fresh set.
func ReuseSecrets(existingEnv string) (Secrets, bool) {
	values := envfile.Values(existingEnv)

	var s Secrets

	for key, dst := range s.fields() {
		v := values[key]
		if v == "" {
			return Secrets{}, false
		}

		*dst = v
	}

	return s, true
}
