package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"quest-launchpad/internal/config"
	"quest-launchpad/pkg/errors"
	"quest-launchpad/pkg/logger"
)

type pinataResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataError struct {
	Error interface{} `json:"error"`
}

type PinataPinner struct {
	jwt      string
	endpoint string
	gateway  string
	client   *http.Client
	now      func() time.Time
}

func NewPinataPinner(cfg config.PinataConfig, client *http.Client) *PinataPinner {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &PinataPinner{
		jwt:      cfg.JWT,
		endpoint: cfg.Endpoint,
		gateway:  strings.TrimRight(cfg.GatewayURL, "/"),
		client:   client,
		now:      time.Now,
	}
}

// Pin 以 multipart 方式调用 pinFileToIPFS，返回网关地址
func (p *PinataPinner) Pin(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return "", errors.New(errors.ErrPin, "构造上传请求失败", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.New(errors.ErrPin, "读取上传文件失败", err)
	}

	meta, _ := json.Marshal(map[string]string{"name": fmt.Sprintf("KyraQuest-%d", p.now().UnixMilli())})
	opts, _ := json.Marshal(map[string]int{"cidVersion": 0})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", errors.New(errors.ErrPin, "构造上传请求失败", err)
	}
	if err := mw.WriteField("pinataOptions", string(opts)); err != nil {
		return "", errors.New(errors.ErrPin, "构造上传请求失败", err)
	}
	if err := mw.Close(); err != nil {
		return "", errors.New(errors.ErrPin, "构造上传请求失败", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return "", errors.New(errors.ErrPin, "构造上传请求失败", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.jwt)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.New(errors.ErrPin, "上传到 Pinata 失败", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.New(errors.ErrPin, "读取 Pinata 响应失败", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("pinata returned %d", resp.StatusCode)
		var perr pinataError
		if json.Unmarshal(raw, &perr) == nil && perr.Error != nil {
			msg = errorText(perr.Error)
		}
		logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"error":  msg,
		}).Warn("Pinata 上传失败")
		return "", errors.New(errors.ErrPin, msg, nil)
	}

	var out pinataResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.New(errors.ErrPin, "解析 Pinata 响应失败", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New(errors.ErrPin, "Pinata 响应缺少 IpfsHash", nil)
	}

	return fmt.Sprintf("%s/ipfs/%s", p.gateway, out.IpfsHash), nil
}

// errorText Pinata 的 error 字段有时是字符串，有时是 {reason, details}
func errorText(v interface{}) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]interface{}:
		if d, ok := e["details"].(string); ok && d != "" {
			return d
		}
		if r, ok := e["reason"].(string); ok {
			return r
		}
	}
	return fmt.Sprint(v)
}
