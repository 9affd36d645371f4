package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"blog_engine/internal/pkg/push"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"

	"go.uber.org/zap"
)

// NotifyTask 文章发布后通知作者的关注者
type NotifyTask struct {
	PostID     uint
	AuthorID   uint
	AuthorName string
	Title      string
	Retry      int // 重试次数
}

// FollowerSource 查询关注者 ID
type FollowerSource interface {
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
}

type WorkerPool struct {
	TaskQueue  chan NotifyTask
	RetryQueue chan NotifyTask // 重试队列
	Followers  FollowerSource
	Pusher     push.PushService
	Metrics    *metrics.MetricsCollector
	WorkerNum  int
	MaxRetry   int // 最大重试次数
	RetryDelay time.Duration

	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewWorkerPool(followers FollowerSource, pusher push.PushService, m *metrics.MetricsCollector, workerNum int, bufferSize int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	return &WorkerPool{
		TaskQueue:  make(chan NotifyTask, bufferSize),
		RetryQueue: make(chan NotifyTask, bufferSize/2),
		Followers:  followers,
		Pusher:     pusher,
		Metrics:    m,
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		RetryDelay: time.Second,
		quit:       make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.L().Info("notification worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 通知所有协程退出并等待，然后把两个队列中剩余的任务各执行一次
// 此时不再重试，失败直接记为死信
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
		p.drain()
	})
}

func (p *WorkerPool) drain() {
	for {
		var task NotifyTask
		select {
		case task = <-p.TaskQueue:
		case task = <-p.RetryQueue:
		default:
			p.updateQueueLength()
			return
		}
		if err := p.processTask(task); err != nil {
			p.logFailedTask(task, err)
			continue
		}
		p.record("sent")
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.TaskQueue:
			p.updateQueueLength()
			p.handle(id, task)
		}
	}
}

func (p *WorkerPool) handle(id int, task NotifyTask) {
	err := p.processTask(task)
	if err == nil {
		p.record("sent")
		return
	}

	log := logger.L().With(zap.Int("worker", id), zap.Uint("post_id", task.PostID), zap.Error(err))

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry < p.MaxRetry {
		task.Retry++
		select {
		case p.RetryQueue <- task:
			p.record("retry")
			log.Warn("notification failed, queued for retry", zap.Int("attempt", task.Retry), zap.Int("max", p.MaxRetry))
		default:
			log.Warn("retry queue full")
			p.logFailedTask(task, err)
		}
		return
	}

	log.Warn("notification exceeded max retries")
	p.logFailedTask(task, err)
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-p.quit:
				return
			case <-time.After(time.Duration(task.Retry) * p.RetryDelay):
			}

			// 重新加入主队列
			select {
			case p.TaskQueue <- task:
				p.updateQueueLength()
			default:
				logger.L().Warn("main queue full, retry dropped", zap.Uint("post_id", task.PostID))
				p.logFailedTask(task, nil)
			}
		}
	}
}

// processTask 分批推送，单批上限 100 个账号
func (p *WorkerPool) processTask(task NotifyTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ids, err := p.Followers.FollowerIDs(ctx, task.AuthorID)
	if err != nil {
		return fmt.Errorf("load followers: %w", err)
	}

	title := fmt.Sprintf("%s published a new post", task.AuthorName)
	ext := map[string]string{"post_id": strconv.FormatUint(uint64(task.PostID), 10)}

	for start := 0; start < len(ids); start += push.MaxAccountsPerPush {
		end := start + push.MaxAccountsPerPush
		if end > len(ids) {
			end = len(ids)
		}
		accounts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			accounts = append(accounts, strconv.FormatUint(uint64(id), 10))
		}
		if err := p.Pusher.PushToAccount(accounts, title, task.Title, ext); err != nil {
			return fmt.Errorf("push batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// logFailedTask 死信只记录日志
func (p *WorkerPool) logFailedTask(task NotifyTask, err error) {
	p.record("dead")
	logger.L().Error("notification failed permanently",
		zap.Uint("post_id", task.PostID),
		zap.Uint("author_id", task.AuthorID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// AddTask 非阻塞入队，队列满时直接记为死信
func (p *WorkerPool) AddTask(task NotifyTask) {
	select {
	case p.TaskQueue <- task:
		p.updateQueueLength()
	default:
		logger.L().Warn("worker pool queue full, dropping task", zap.Uint("post_id", task.PostID))
		p.logFailedTask(task, nil)
	}
}

func (p *WorkerPool) record(result string) {
	if p.Metrics != nil {
		p.Metrics.RecordNotification(result)
	}
}

func (p *WorkerPool) updateQueueLength() {
	if p.Metrics != nil {
		p.Metrics.SetNotificationQueueLength(len(p.TaskQueue))
	}
}
