package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"rice-quality-analyzer/internal/model"
)

// AnalysisStats is a running tally of analysis events.
type AnalysisStats struct {
	Total           int64            `json:"total"`
	ByOutcome       map[string]int64 `json:"by_outcome"`
	AvgDurationMS   int64            `json:"avg_duration_ms"`
	LastOutcome     string           `json:"last_outcome,omitempty"`
	totalDurationMS int64
}

// AnalysisStatsWorker consumes the analysis event queue and keeps AnalysisStats.
type AnalysisStatsWorker struct {
	conn      *amqp.Connection
	queueName string

	mu    sync.Mutex
	stats AnalysisStats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisStatsWorker(conn *amqp.Connection, queueName string) *AnalysisStatsWorker {
	return &AnalysisStatsWorker{
		conn:      conn,
		queueName: queueName,
		stats:     AnalysisStats{ByOutcome: make(map[string]int64)},
	}
}

func (w *AnalysisStatsWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"analysis-stats",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.Handle(d.Body); err != nil {
					log.Printf("worker handle analysis event failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// Handle records one encoded model.AnalysisEvent.
func (w *AnalysisStatsWorker) Handle(body []byte) error {
	var event model.AnalysisEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode analysis event failed: %w", err)
	}
	if event.Outcome == "" {
		return fmt.Errorf("analysis event without outcome")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Total++
	w.stats.ByOutcome[event.Outcome]++
	w.stats.totalDurationMS += event.DurationMS
	w.stats.AvgDurationMS = w.stats.totalDurationMS / w.stats.Total
	w.stats.LastOutcome = event.Outcome
	return nil
}

// Snapshot returns a copy of the current tally.
func (w *AnalysisStatsWorker) Snapshot() AnalysisStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.stats
	out.ByOutcome = make(map[string]int64, len(w.stats.ByOutcome))
	for k, v := range w.stats.ByOutcome {
		out.ByOutcome[k] = v
	}
	return out
}

func (w *AnalysisStatsWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
