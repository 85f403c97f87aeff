package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// restStore 对接托管对象存储的 REST API（bucket + path 寻址）。
// 上传接口通过 x-upsert 头控制覆盖语义，同路径冲突返回 409。
type restStore struct {
	client     *resty.Client
	baseURL    string
	bucket     string
	serviceKey string
}

// NewRESTStore 创建 REST 对象存储客户端。
func NewRESTStore(baseURL, bucket, serviceKey string) BlobStore {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Authorization", "Bearer "+serviceKey)
	return &restStore{
		client:     client,
		baseURL:    baseURL,
		bucket:     bucket,
		serviceKey: serviceKey,
	}
}

func (s *restStore) Put(ctx context.Context, path string, data []byte, contentType string, upsert bool) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", fmt.Sprintf("%t", upsert)).
		SetBody(data).
		Post(fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path))
	if err != nil {
		return "", err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return s.PublicURL(path), nil
	case http.StatusConflict:
		return "", ErrBlobExists
	default:
		return "", fmt.Errorf("storage put %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
}

func (s *restStore) Delete(ctx context.Context, path string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrBlobNotFound
	default:
		return fmt.Errorf("storage delete %s: status %d", path, resp.StatusCode())
	}
}

// listEntry 列举接口的响应行。
type listEntry struct {
	Name     string    `json:"name"`
	Created  time.Time `json:"created_at"`
	Metadata struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// listPageSize 列举接口单页上限。
const listPageSize = 1000

// List 按 offset 翻页取全量，直到返回不满一页为止。
func (s *restStore) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	for offset := 0; ; offset += listPageSize {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(map[string]any{"prefix": prefix, "limit": listPageSize, "offset": offset}).
			Post(fmt.Sprintf("%s/object/list/%s", s.baseURL, s.bucket))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("storage list %s: status %d", prefix, resp.StatusCode())
		}

		var entries []listEntry
		if err := json.Unmarshal(resp.Body(), &entries); err != nil {
			return nil, err
		}
		for _, e := range entries {
			out = append(out, BlobInfo{
				Path:      e.Name,
				Size:      e.Metadata.Size,
				CreatedAt: e.Created,
			})
		}
		if len(entries) < listPageSize {
			return out, nil
		}
	}
}

func (s *restStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, path)
}

// signResponse 签名接口返回相对 URL。
type signResponse struct {
	SignedURL string `json:"signedURL"`
}

func (s *restStore) SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"expiresIn": int(expiresIn.Seconds())}).
		Post(fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, s.bucket, path))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("storage sign %s: status %d", path, resp.StatusCode())
	}
	var sr signResponse
	if err := json.Unmarshal(resp.Body(), &sr); err != nil {
		return "", err
	}
	return s.baseURL + sr.SignedURL, nil
}
