// Package fillevents publishes one Kafka event per completed cache fill
// so downstream consumers can audit coverage growth and upstream data
// revisions. Publishing is best-effort and never blocks the query path.
package fillevents

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

type Event struct {
	Symbol  string    `json:"symbol"`
	Dataset string    `json:"dataset"`
	Start   string    `json:"start"`
	End     string    `json:"end"`
	Plan    string    `json:"plan"`
	Rows    int       `json:"rows"`
	TS      time.Time `json:"ts"`
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int) (*Publisher, error) {
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("fillevents: create async producer: %w", err)
	}

	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("fillevents: marshal error: %v", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Dataset + "/" + ev.Symbol),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				log.Printf("fillevents: producer error: %v", err)
			}
		}
	}()

	return p, nil
}

func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		// queue full: drop rather than stall a fill
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("fillevents: close producer: %w", err)
	}
	return nil
}

var global *Publisher

// InitGlobal installs the process-wide publisher; nil disables
// publishing (Publish becomes a no-op).
func InitGlobal(p *Publisher) {
	global = p
}

func Publish(ev Event) {
	if global == nil {
		return
	}
	global.Publish(ev)
}

func CloseGlobal() error {
	if global == nil {
		return nil
	}
	return global.Close()
}
