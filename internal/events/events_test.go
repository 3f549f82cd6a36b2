package events

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestParseBrokers(t *testing.T) {
	got := ParseBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(ParseBrokers("")) != 0 {
		t.Fatalf("expected no brokers for empty input")
	}
}

func TestKafkaTopicUsesPrefix(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "familypos.")
	defer p.Close()
	if got := p.Topic(SaleCommitted); got != "familypos.sale.committed" {
		t.Fatalf("unexpected topic %q", got)
	}
}

func TestKafkaWriterFlushesSingleEventsQuickly(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "familypos.")
	defer p.Close()
	if p.writer.BatchTimeout <= 0 || p.writer.BatchTimeout > 50*time.Millisecond {
		t.Fatalf("expected a short batch timeout, got %s", p.writer.BatchTimeout)
	}
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.Publish(context.Background(), SaleReturned, "sale-1", nil); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}
