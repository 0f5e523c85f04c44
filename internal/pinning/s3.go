package pinning

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"quest-launchpad/internal/config"
	"quest-launchpad/pkg/errors"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Pinner 上传到 S3 兼容存储（Cloudflare R2），对象名取内容的 sha256
type S3Pinner struct {
	client objectPutter
	bucket string
	cdnURL string
}

func NewS3Pinner(ctx context.Context, cfg config.S3Config) (*S3Pinner, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	cdn := cfg.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + cfg.Bucket
	}
	return newS3Pinner(client, cfg.Bucket, cdn), nil
}

func newS3Pinner(client objectPutter, bucket, cdnURL string) *S3Pinner {
	return &S3Pinner{client: client, bucket: bucket, cdnURL: strings.TrimRight(cdnURL, "/")}
}

func (p *S3Pinner) Pin(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", errors.New(errors.ErrPin, "读取上传文件失败", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	key := "quests/" + hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(name))

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return "", errors.New(errors.ErrPin, "上传到对象存储失败", err)
	}

	return fmt.Sprintf("%s/%s", p.cdnURL, key), nil
}
