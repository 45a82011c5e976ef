package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"coupon_hub/internal/pkg/push"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification pool stopped")
)

// NotifyTask 一次推送任务
type NotifyTask struct {
	AccountIDs []string
	Message    push.Message
	Retry      int // 重试次数
}

// WorkerPool 异步推送池，实现 push.Notifier
// 入队即返回，失败按 Retry*RetryDelay 退避重试
type WorkerPool struct {
	taskQueue  chan NotifyTask
	retryQueue chan NotifyTask // 重试队列
	notifier   push.Notifier
	log        *zap.Logger

	WorkerNum  int
	MaxRetry   int // 最大重试次数
	RetryDelay time.Duration
	Timeout    time.Duration // 单次推送超时

	quit     chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorkerPool(notifier push.Notifier, log *zap.Logger, workerNum int, bufferSize int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &WorkerPool{
		taskQueue:  make(chan NotifyTask, bufferSize),
		retryQueue: make(chan NotifyTask, bufferSize/2+1),
		notifier:   notifier,
		log:        log,
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		RetryDelay: time.Second,
		Timeout:    5 * time.Second,
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
	p.log.Info("notification worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务，尽量投递队列中剩余的任务
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.quit)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyAccounts 入队，不等待推送结果
func (p *WorkerPool) NotifyAccounts(_ context.Context, accountIDs []string, msg push.Message) error {
	if len(accountIDs) == 0 {
		return nil
	}
	ids := make([]string, len(accountIDs))
	copy(ids, accountIDs)
	return p.AddTask(NotifyTask{AccountIDs: ids, Message: msg})
}

func (p *WorkerPool) AddTask(task NotifyTask) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	select {
	case p.taskQueue <- task:
		return nil
	default:
		p.logFailedTask(task, ErrQueueFull)
		return ErrQueueFull
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.taskQueue:
			p.handle(id, task)
		case <-p.quit:
			p.drain(id)
			return
		}
	}
}

// drain 退出前投递剩余任务，不再重试
func (p *WorkerPool) drain(id int) {
	for {
		select {
		case task := <-p.taskQueue:
			if err := p.processTask(task); err != nil {
				p.logFailedTask(task, err)
			}
		default:
			return
		}
	}
}

func (p *WorkerPool) handle(id int, task NotifyTask) {
	err := p.processTask(task)
	if err == nil {
		return
	}
	p.log.Warn("notification delivery failed",
		zap.Int("worker", id),
		zap.Int("accounts", len(task.AccountIDs)),
		zap.Int("attempt", task.Retry+1),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}
	task.Retry++
	select {
	case p.retryQueue <- task:
	default:
		p.logFailedTask(task, ErrQueueFull)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.retryQueue:
			// 延迟重试，避免立即重试
			timer := time.NewTimer(time.Duration(task.Retry) * p.RetryDelay)
			select {
			case <-timer.C:
			case <-p.quit:
				timer.Stop()
				p.logFailedTask(task, ErrStopped)
				return
			}

			select {
			case p.taskQueue <- task:
			default:
				p.logFailedTask(task, ErrQueueFull)
			}
		case <-p.quit:
			return
		}
	}
}

func (p *WorkerPool) processTask(task NotifyTask) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	return p.notifier.NotifyAccounts(ctx, task.AccountIDs, task.Message)
}

func (p *WorkerPool) logFailedTask(task NotifyTask, err error) {
	p.log.Error("notification dropped",
		zap.Int("accounts", len(task.AccountIDs)),
		zap.String("title", task.Message.Title),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}
