package stack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruffel/vpsops/envfile"
)

const (
	postgresUser   = "postgres"
	postgresDB     = "postgres"
	clickhouseUser = "clickhouse"
	minioRootUser  = "minio"
	localBucket    = "langfuse"
)

// BuildEnv renders the initial .env of a deployment. MinIO's root credentials
// double as the S3 credentials for both event and media uploads.
func BuildEnv(d Domains, s Secrets) string {
	d = d.WithDefaults()

	u := func(k, v string) envfile.Update { return envfile.Update{Key: k, Value: v} }

	return envfile.Format(
		[]envfile.Update{
			u("NEXTAUTH_URL", "https://"+d.Web),
			u("NEXTAUTH_SECRET", s.NextAuthSecret),
			u("SALT", s.Salt),
			u("ENCRYPTION_KEY", s.EncryptionKey),
		},
		[]envfile.Update{
			u("POSTGRES_USER", postgresUser),
			u("POSTGRES_PASSWORD", s.PostgresPassword),
			u("POSTGRES_DB", postgresDB),
			u("DATABASE_URL", fmt.Sprintf("postgresql://%s:%s@postgres:5432/%s", postgresUser, s.PostgresPassword, postgresDB)),
		},
		[]envfile.Update{
			u("REDIS_AUTH", s.RedisAuth),
		},
		[]envfile.Update{
			u("CLICKHOUSE_USER", clickhouseUser),
			u("CLICKHOUSE_PASSWORD", s.ClickhousePassword),
		},
		[]envfile.Update{
			u("MINIO_ROOT_USER", minioRootUser),
			u("MINIO_ROOT_PASSWORD", s.MinioRootPassword),
		},
		uploadGroup("EVENT", localBucket, minioRootUser, s.MinioRootPassword, "http://minio:9000", "events/"),
		uploadGroup("MEDIA", localBucket, minioRootUser, s.MinioRootPassword, "https://"+d.S3, "media/"),
	)
}

func uploadGroup(kind, bucket, accessKey, secretKey, endpoint, prefix string) []envfile.Update {
	p := "LANGFUSE_S3_" + kind + "_UPLOAD_"

	return []envfile.Update{
		{Key: p + "BUCKET", Value: bucket},
		{Key: p + "REGION", Value: "auto"},
		{Key: p + "ACCESS_KEY_ID", Value: accessKey},
		{Key: p + "SECRET_ACCESS_KEY", Value: secretKey},
		{Key: p + "ENDPOINT", Value: endpoint},
		{Key: p + "FORCE_PATH_STYLE", Value: "true"},
		{Key: p + "PREFIX", Value: prefix},
	}
}

// R2 identifies a Cloudflare R2 bucket and the API token used to reach it.
type R2 struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Errors returned by R2.Validate.
var (
	ErrIncompleteR2 = errors.New("incomplete R2 settings")
	ErrInvalidR2    = errors.New("invalid R2 settings")
)

// Validate reports the blank fields of r, then fields spanning several lines,
// which cannot be written to the .env.
func (r R2) Validate() error {
	var missing, broken []string

	for _, f := range []struct{ name, value string }{
		{"account id", r.AccountID},
		{"access key id", r.AccessKeyID},
		{"secret access key", r.SecretAccessKey},
		{"bucket", r.Bucket},
	} {
		switch {
		case strings.TrimSpace(f.value) == "":
			missing = append(missing, f.name)
		case !envfile.ValidValue(f.value):
			broken = append(broken, f.name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteR2, strings.Join(missing, ", "))
	}

	if len(broken) > 0 {
		return fmt.Errorf("%w: line break in %s", ErrInvalidR2, strings.Join(broken, ", "))
	}

	return nil
}

// SiteUpdates are the .env settings derived from the domains. A redeploy over
// an existing .env applies only these, keeping secrets and storage settings.
func SiteUpdates(d Domains) []envfile.Update {
	d = d.WithDefaults()

	return []envfile.Update{{Key: "NEXTAUTH_URL", Value: "https://" + d.Web}}
}

// R2Endpoint is the account's S3 endpoint. Presigned URLs only work against
// this host, not against custom bucket domains.
func R2Endpoint(accountID string) string {
	return "https://" + accountID + ".r2.cloudflarestorage.com"
}

// MediaUpdates points media uploads at r. Event uploads keep using MinIO.
// Path-style addressing avoids needing per-bucket DNS names.
func MediaUpdates(r R2) []envfile.Update {
	const p = "LANGFUSE_S3_MEDIA_UPLOAD_"

	return []envfile.Update{
		{Key: p + "BUCKET", Value: r.Bucket},
		{Key: p + "REGION", Value: "auto"},
		{Key: p + "ACCESS_KEY_ID", Value: r.AccessKeyID},
		{Key: p + "SECRET_ACCESS_KEY", Value: r.SecretAccessKey},
		{Key: p + "ENDPOINT", Value: R2Endpoint(r.AccountID)},
		{Key: p + "FORCE_PATH_STYLE", Value: "true"},
	}
}
