package extract

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/morphemizer"
)

func setupBenchmarkDB(b *testing.B) *sql.DB {
	conn, err := cache.Open(":memory:")
	if err != nil {
		b.Fatalf("failed to open db: %v", err)
	}
	if err := cache.Rebuild(conn); err != nil {
		b.Fatalf("failed to rebuild cache: %v", err)
	}
	return conn
}

func generateBenchmarkCards(n int) []Card {
	cards := make([]Card, n)
	for i := range cards {
		cards[i] = Card{
			ID:       int64(i + 1),
			NoteID:   int64(i + 1),
			Type:     collection.CardTypeReview,
			Interval: i % 40,
			Text:     fmt.Sprintf("これはテスト文です 猫が%d匹いました", i),
		}
	}
	return cards
}

func BenchmarkExtractConcurrencyScaling(b *testing.B) {
	cards := generateBenchmarkCards(2000)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("Workers_%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				conn := setupBenchmarkDB(b)
				ex := New(conn)
				ex.Workers = workers
				ex.BatchSize = 200
				b.StartTimer()

				_, err := ex.Extract(context.Background(), []Source{{Morphemizer: morphemizer.NewKagome(false), Cards: cards}})
				b.StopTimer()
				conn.Close()
				if err != nil {
					b.Fatalf("Extract failed: %v", err)
				}
			}
		})
	}
}
