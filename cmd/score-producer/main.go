package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/leaderboard-rewards/internal/domain"
)

// Load generator: emits random score events for a fixed population of
// player ids so the consumer, index, and reward pool can be exercised
// under sustained write traffic.

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "player-score-events", "Kafka topic")
	totalPlayers := flag.Int("players", 1000, "Number of distinct player ids to emit for")
	eventsPerSecond := flag.Int("rate", 100, "Score events per second")
	maxAmount := flag.Float64("max-amount", 250, "Maximum earned amount per event")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	log.Printf("score producer starting: brokers=%s topic=%s players=%d rate=%d/s",
		*brokers, *topic, *totalPlayers, *eventsPerSecond)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendEvent := func(event domain.ScoreEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		// Key by player id so one player's events stay ordered
		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(strconv.FormatInt(event.PlayerID, 10)),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
		}
	}

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		log.Printf("completed: sent=%d errors=%d",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			log.Println("shutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				log.Println("duration reached, shutting down...")
				shutdown()
				return
			}

			// Skew traffic towards the head of the board so ranks move
			var playerID int64
			if rand.Intn(100) < 70 {
				playerID = int64(rand.Intn(20) + 1)
			} else {
				playerID = int64(rand.Intn(*totalPlayers) + 1)
			}

			sendEvent(domain.ScoreEvent{
				PlayerID:  playerID,
				Amount:    rand.Float64()**maxAmount + 1,
				Timestamp: time.Now(),
			})
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			log.Printf("events=%d sent=%d errors=%d",
				atomic.LoadInt64(&eventCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
