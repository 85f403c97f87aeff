package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// 最小合法 PNG 头，足够通过魔数嗅探。
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	jwtSecret := flag.String("jwt-secret", "dev-secret", "jwt secret for minting test tokens")
	userID := flag.String("user", "loadtest-user", "user id")

	// 限流测试参数：同一用户连续上传，验证滑动窗口限流
	total := flag.Int("n", 50, "upload attempts")
	concurrency := flag.Int("c", 20, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	token, err := mintToken(*jwtSecret, *userID)
	if err != nil {
		panic(err)
	}

	// 先建一个购买请求，再并发传凭证
	requestID, err := createRequest(client, *baseURL, token)
	if err != nil {
		panic(fmt.Sprintf("create request failed: %v", err))
	}
	fmt.Println("purchase request:", requestID)

	fmt.Printf("start upload test: n=%d concurrency=%d\n", *total, *concurrency)
	results := runUploads(client, *baseURL, token, requestID, *total, *concurrency)
	printSummary("upload", results)
}

// mintToken 本地签发测试 JWT（与服务端共享密钥）。
func mintToken(secret, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@loadtest.local",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func createRequest(client *http.Client, baseURL, token string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"item_type": "book",
		"item_id":   "loadtest-book",
		"amount":    1000,
	})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/payments/requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", err
	}
	return out.Data.ID, nil
}

func runUploads(client *http.Client, baseURL, token, requestID string, total, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = uploadOnce(client, baseURL, token, requestID, idx)
		}(i)
	}

	wg.Wait()
	return results
}

func uploadOnce(client *http.Client, baseURL, token, requestID string, idx int) Result {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("purchaseRequestId", requestID)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="receipt-%d.png"`, idx)},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		return Result{Err: err}
	}
	_, _ = part.Write(pngHeader)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/payments/confirmations/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
