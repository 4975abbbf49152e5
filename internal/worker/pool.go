package worker

import (
	"context"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/travel-assistant/internal/store/rabbitmq"
)

type JobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}

// Pool runs deliveries on a fixed number of goroutines. Failed jobs are
// nacked without requeue and land in the DLQ.
type Pool struct {
	runner      JobRunner
	concurrency int
}

func NewPool(runner JobRunner, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{runner: runner, concurrency: concurrency}
}

// Run blocks until ctx is done or deliveries is closed, then waits for
// in-flight jobs.
func (p *Pool) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	jobs := make(chan amqp.Delivery, p.concurrency*2)

	var wg sync.WaitGroup
	wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				p.handle(ctx, workerID, d)
			}
		}(i)
	}

	// dispatcher
	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[worker.Pool] shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("[worker.Pool] delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	m, err := rabbitmq.DecodeJobMessage(d.Body)
	if err != nil {
		log.Printf("[worker.Pool] worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := p.runner.RunJob(ctx, m.JobID); err != nil {
		log.Printf("[worker.Pool] worker=%d job=%s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
		_ = d.Nack(false, false)
		return
	}
	if cost := time.Since(start); cost > 2*time.Second {
		log.Printf("[worker.Pool] worker=%d job=%s slow cost=%s", workerID, m.JobID, cost)
	}
	if err := d.Ack(false); err != nil {
		log.Printf("[worker.Pool] worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
	}
}
