package utils

import (
	"sync"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/bytehub/middleware/log"
)

// Executor 异步执行任务
type Executor interface {
	Submit(job func())
}

// InlineExecutor 在调用方协程中同步执行任务，用于测试
type InlineExecutor struct{}

func (InlineExecutor) Submit(job func()) { job() }

// WorkerPool 通用协程池
type WorkerPool struct {
	JobQueue  chan func()
	WorkerNum int
	log       *logger.Logger
	wg        sync.WaitGroup
	quit      chan struct{}
	stopOnce  sync.Once
}

// NewWorkerPool 创建一个新的协程池
func NewWorkerPool(workerNum int, queueSize int, log *logger.Logger) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &WorkerPool{
		JobQueue:  make(chan func(), queueSize),
		WorkerNum: workerNum,
		log:       log,
		quit:      make(chan struct{}),
	}
}

// Start 启动协程池
func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.JobQueue:
					p.run(workerID, job)
				case <-p.quit:
					// 退出前执行完队列中剩余的任务
					for {
						select {
						case job := <-p.JobQueue:
							p.run(workerID, job)
						default:
							return
						}
					}
				}
			}
		}(i)
	}
	p.log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

// run 执行单个任务，recover 防止单个任务 panic 导致 worker 挂掉
func (p *WorkerPool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit 提交任务到协程池
// 如果队列已满，此方法会阻塞，直到有空位或协程池被停止；停止后提交的任务会被丢弃
func (p *WorkerPool) Submit(job func()) {
	select {
	case <-p.quit:
		p.log.Warn("worker pool stopped, job dropped")
		return
	default:
	}

	select {
	case p.JobQueue <- job:
	case <-p.quit:
		p.log.Warn("worker pool stopped, job dropped")
	}
}

// Stop 停止协程池并等待剩余任务完成
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
