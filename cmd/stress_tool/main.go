package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 并发点赞压测：每个用户对同一篇文章切换 rounds 次，
// 结束后文章点赞数应等于切换次数为奇数的用户数
var (
	baseURL    = flag.String("url", "http://localhost:8080", "server base URL")
	totalUsers = flag.Int("users", 200, "concurrent users")
	rounds     = flag.Int("rounds", 3, "like toggles per user")
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	flag.Parse()
	run := strings.Split(uuid.NewString(), "-")[0]

	// 1. 作者发布文章
	author := login(fmt.Sprintf("author_%s", run))
	postID := createPost(author, run)
	fmt.Printf("开始压测：%d 个用户各切换点赞 %d 次 (PostID: %d)...\n", *totalUsers, *rounds, postID)

	// 2. 准备用户
	tokens := make([]string, *totalUsers)
	var wg sync.WaitGroup
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = login(fmt.Sprintf("reader_%s_%d", run, i))
		}(i)
	}
	wg.Wait()

	// 3. 并发切换点赞
	var mu sync.Mutex
	success, failed := 0, 0
	start := time.Now()
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			for r := 0; r < *rounds; r++ {
				ok := toggleLike(token, postID)
				mu.Lock()
				if ok {
					success++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}(token)
	}
	wg.Wait()
	duration := time.Since(start)

	expected := 0
	if *rounds%2 == 1 {
		expected = *totalUsers
	}
	actual := likesCount(postID)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", success+failed)
	fmt.Printf("QPS: %.2f\n", float64(success+failed)/duration.Seconds())
	fmt.Printf("成功: %d 失败: %d\n", success, failed)
	fmt.Printf("最终点赞数: %d (预期: %d)\n", actual, expected)
	fmt.Println("--------------------------------------------------")
	if failed == 0 && actual != int64(expected) {
		os.Exit(1)
	}
}

// post /auth 接口按 IP 限流，遇到 429 退避重试
func post(path, token string, payload interface{}) (*http.Response, error) {
	var raw []byte
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(http.MethodPost, *baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := httpClient.Do(req)
		if err != nil || resp.StatusCode != http.StatusTooManyRequests || attempt >= 50 {
			return resp, err
		}
		resp.Body.Close()
		time.Sleep(time.Duration(100+attempt*20) * time.Millisecond)
	}
}

func decode(resp *http.Response, dest interface{}) error {
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	return json.Unmarshal(respBody, dest)
}

// login 注册（已存在则忽略）后登录，返回 token
func login(username string) string {
	creds := map[string]string{
		"username": username,
		"email":    username + "@stress.local",
		"password": "stress-password",
	}
	if resp, err := post("/auth/register", "", creds); err == nil {
		resp.Body.Close()
	}

	resp, err := post("/auth/login", "", creds)
	if err != nil {
		fail("登录失败", err)
	}
	var env envelope
	if err := decode(resp, &env); err != nil {
		fail("登录失败", err)
	}
	var result struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &result)
	return result.Token
}

func createPost(token, run string) int {
	payload := map[string]interface{}{
		"title":   "Stress test post " + run,
		"content": strings.Repeat("Concurrent like toggles should never drift the counter. ", 3),
	}
	resp, err := post("/post/new/", token, payload)
	if err != nil {
		fail("创建文章失败", err)
	}
	var env envelope
	if err := decode(resp, &env); err != nil {
		fail("创建文章失败", err)
	}
	var result struct {
		ID int `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &result)
	return result.ID
}

func toggleLike(token string, postID int) bool {
	resp, err := post(fmt.Sprintf("/post/%d/like/", postID), token, nil)
	if err != nil {
		return false
	}
	var result struct {
		Liked bool `json:"liked"`
	}
	return decode(resp, &result) == nil
}

func likesCount(postID int) int64 {
	resp, err := httpClient.Get(fmt.Sprintf("%s/post/%d/", *baseURL, postID))
	if err != nil {
		fail("读取文章失败", err)
	}
	var env envelope
	if err := decode(resp, &env); err != nil {
		fail("读取文章失败", err)
	}
	var result struct {
		LikesCount int64 `json:"likesCount"`
	}
	_ = json.Unmarshal(env.Data, &result)
	return result.LikesCount
}

func fail(msg string, err error) {
	fmt.Printf("%s: %v\n", msg, err)
	os.Exit(1)
}
