package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"blog_engine/pkg/loadtest"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL for testing")
		testType    = flag.String("type", "all", "Test type: home, search, detail, author, all")
		concurrency = flag.Int("concurrency", 50, "concurrent workers")
		duration    = flag.Duration("duration", 30*time.Second, "duration of each test")
		postID      = flag.Uint("post", 1, "post id used by the detail test")
		author      = flag.String("author", "", "username used by the author test")
		token       = flag.String("token", "", "optional bearer token, adds the bookmarks list to the author test")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}
	if err := loadtest.GetRequest(client, *baseURL+"/health", nil)(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "服务器不可用: %s (%v)\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Printf("服务器可用: %s\n\n", *baseURL)

	var header http.Header
	if *token != "" {
		header = http.Header{"Authorization": {"Bearer " + *token}}
	}

	suites := map[string]func() *loadtest.PerformanceTest{
		"home": func() *loadtest.PerformanceTest {
			pt := loadtest.NewPerformanceTest("首页列表", *concurrency, *duration)
			pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/", nil))
			pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/?sort=popular&page=2", nil))
			pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/about/", nil))
			return pt
		},
		"search": func() *loadtest.PerformanceTest {
			pt := loadtest.NewPerformanceTest("搜索", *concurrency, *duration)
			pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/search/?q=go", nil))
			pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/search/?q=post&page=2", nil))
			return pt
		},
		"detail": func() *loadtest.PerformanceTest {
			pt := loadtest.NewPerformanceTest("文章详情", *concurrency, *duration)
			pt.AddRequest(loadtest.GetRequest(client, fmt.Sprintf("%s/post/%d/", *baseURL, *postID), header))
			return pt
		},
		"author": func() *loadtest.PerformanceTest {
			pt := loadtest.NewPerformanceTest("作者主页", *concurrency, *duration)
			if *author != "" {
				pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/user/"+*author+"/", header))
			}
			if header != nil {
				pt.AddRequest(loadtest.GetRequest(client, *baseURL+"/bookmarks/", header))
			}
			return pt
		},
	}
	order := []string{"home", "search", "detail", "author"}

	selected := order
	if *testType != "all" {
		if _, ok := suites[*testType]; !ok {
			fmt.Fprintf(os.Stderr, "未知的测试类型: %s\n", *testType)
			flag.Usage()
			os.Exit(2)
		}
		selected = []string{*testType}
	}

	failed := false
	for _, name := range selected {
		if ctx.Err() != nil {
			break
		}
		result := suites[name]().Run(ctx)
		result.Print(os.Stdout)
		fmt.Println()
		if result.FailedRequests > 0 {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
