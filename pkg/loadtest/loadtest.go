package loadtest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// RequestFunc 单次请求
type RequestFunc func(ctx context.Context) error

// PerformanceTest 固定并发、固定时长循环执行请求
type PerformanceTest struct {
	name        string
	concurrency int
	duration    time.Duration
	requests    []RequestFunc

	mu        sync.Mutex
	total     int64
	failed    int64
	durations []time.Duration
}

func NewPerformanceTest(name string, concurrency int, duration time.Duration) *PerformanceTest {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PerformanceTest{name: name, concurrency: concurrency, duration: duration}
}

// AddRequest 添加请求函数，按添加顺序轮流执行
func (pt *PerformanceTest) AddRequest(request RequestFunc) {
	pt.requests = append(pt.requests, request)
}

// Run 运行直到时长耗尽或 parent 取消
func (pt *PerformanceTest) Run(parent context.Context) *TestResult {
	ctx, cancel := context.WithTimeout(parent, pt.duration)
	defer cancel()

	if len(pt.requests) == 0 {
		return pt.result(0)
	}

	requestChan := make(chan RequestFunc, pt.concurrency*2)
	var wg sync.WaitGroup
	for i := 0; i < pt.concurrency; i++ {
		wg.Add(1)
		go pt.worker(ctx, &wg, requestChan)
	}

	start := time.Now()
	go func() {
		defer close(requestChan)
		for {
			for _, req := range pt.requests {
				select {
				case requestChan <- req:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	wg.Wait()
	return pt.result(time.Since(start))
}

func (pt *PerformanceTest) worker(ctx context.Context, wg *sync.WaitGroup, requestChan <-chan RequestFunc) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case request, ok := <-requestChan:
			if !ok {
				return
			}
			pt.execute(ctx, request)
		}
	}
}

func (pt *PerformanceTest) execute(ctx context.Context, request RequestFunc) {
	start := time.Now()
	err := request(ctx)
	elapsed := time.Since(start)

	// 截止时间打断的请求不计入
	if ctx.Err() != nil {
		return
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.total++
	pt.durations = append(pt.durations, elapsed)
	if err != nil {
		pt.failed++
	}
}

func (pt *PerformanceTest) result(elapsed time.Duration) *TestResult {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	r := &TestResult{
		TestName:        pt.name,
		Concurrency:     pt.concurrency,
		Duration:        elapsed,
		TotalRequests:   pt.total,
		FailedRequests:  pt.failed,
		SuccessRequests: pt.total - pt.failed,
	}
	if pt.total == 0 {
		return r
	}
	if elapsed > 0 {
		r.QPS = float64(pt.total) / elapsed.Seconds()
	}
	r.SuccessRate = float64(r.SuccessRequests) / float64(pt.total)
	r.ErrorRate = float64(pt.failed) / float64(pt.total)

	sorted := append([]time.Duration(nil), pt.durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	r.AverageResponseTime = sum / time.Duration(len(sorted))
	r.MinResponseTime = sorted[0]
	r.MaxResponseTime = sorted[len(sorted)-1]
	r.P50 = percentile(sorted, 0.5)
	r.P95 = percentile(sorted, 0.95)
	r.P99 = percentile(sorted, 0.99)
	return r
}

// percentile sorted 必须已升序
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// TestResult 测试结果
type TestResult struct {
	TestName            string        `json:"test_name"`
	Concurrency         int           `json:"concurrency"`
	Duration            time.Duration `json:"duration"`
	TotalRequests       int64         `json:"total_requests"`
	SuccessRequests     int64         `json:"success_requests"`
	FailedRequests      int64         `json:"failed_requests"`
	QPS                 float64       `json:"qps"`
	SuccessRate         float64       `json:"success_rate"`
	ErrorRate           float64       `json:"error_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`
	P50                 time.Duration `json:"p50"`
	P95                 time.Duration `json:"p95"`
	P99                 time.Duration `json:"p99"`
}

// Print 打印测试结果
func (tr *TestResult) Print(w io.Writer) {
	fmt.Fprintf(w, "== %s ==\n", tr.TestName)
	fmt.Fprintf(w, "并发数: %d  时长: %v\n", tr.Concurrency, tr.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "总请求: %d  成功: %d  失败: %d\n", tr.TotalRequests, tr.SuccessRequests, tr.FailedRequests)
	fmt.Fprintf(w, "QPS: %.2f  成功率: %.2f%%\n", tr.QPS, tr.SuccessRate*100)
	fmt.Fprintf(w, "平均: %v  最小: %v  最大: %v\n", tr.AverageResponseTime, tr.MinResponseTime, tr.MaxResponseTime)
	fmt.Fprintf(w, "P50: %v  P95: %v  P99: %v\n", tr.P50, tr.P95, tr.P99)
}

// GetRequest 返回一个 GET 请求函数，非 2xx 记为失败
func GetRequest(client *http.Client, url string, header http.Header) RequestFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}
