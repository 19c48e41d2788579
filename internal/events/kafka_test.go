package events

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestKafkaReaderJoinsOwnGroupFromLatest(t *testing.T) {
	bus := NewKafkaBus([]string{"localhost:9092"}, "pos-events")
	defer bus.Close()

	a := bus.readerConfig()
	b := bus.readerConfig()

	if a.GroupID == "" || a.GroupID == b.GroupID {
		t.Fatalf("each subscriber needs its own group: %q %q", a.GroupID, b.GroupID)
	}
	// Grup okuyucusu tüm partition'ları alır; sabit partition verilmemeli
	if a.Partition != 0 {
		t.Fatalf("partition = %d", a.Partition)
	}
	if a.StartOffset != kafka.LastOffset {
		t.Fatalf("start offset = %d", a.StartOffset)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("reader config invalid: %v", err)
	}
}
