package pinning

import (
	"context"
	"fmt"
	"io"

	"quest-launchpad/internal/config"
)

// Pinner 把任务图片等文件持久化，返回可公开访问的地址
type Pinner interface {
	Pin(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// New 按配置选择实现；未配置凭据时返回 nil，上传接口随之关闭
func New(ctx context.Context, cfg config.PinningConfig) (Pinner, error) {
	switch cfg.Provider {
	case "", "pinata":
		if cfg.Pinata.JWT == "" {
			return nil, nil
		}
		return NewPinataPinner(cfg.Pinata, nil), nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, nil
		}
		return NewS3Pinner(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported pinning provider: %s", cfg.Provider)
	}
}
