// Package main seeds a local data directory with a demo owner.
//
// It sets the owner's subscription tier in Redis, likes a handful of sample
// products and prints an access token for calling the API.
//
// Usage:
//
//	DATA_PATH=~/.visionboard go run ./cmd/seed --owner demo --tier pro
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/roomcraft/visionboard/internal/auth"
	"github.com/roomcraft/visionboard/internal/catalog"
	"github.com/roomcraft/visionboard/internal/domain"
	"github.com/roomcraft/visionboard/internal/logger"
	"github.com/roomcraft/visionboard/internal/search"
	"github.com/roomcraft/visionboard/internal/store/sqlite"
	"github.com/roomcraft/visionboard/internal/subscription"
)

var (
	ownerID   = flag.String("owner", "demo", "Owner ID to seed")
	tier      = flag.String("tier", "free", "Subscription tier (free, pro, studio)")
	redisAddr = flag.String("redis-addr", "localhost:6379", "Redis address")
	tokenTTL  = flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed access token")
)

var sampleProducts = []struct {
	id, name, price string
	marketplace     domain.Marketplace
	project         string
}{
	{"amz-B07SOFA01", "Mid-century three seat sofa", "899.00", domain.MarketplaceAmazon, "living-room"},
	{"amz-B08LAMP22", "Brass arc floor lamp", "149.99", domain.MarketplaceAmazon, "living-room"},
	{"etsy-1188rug", "Hand woven wool rug 5x8", "420.00", domain.MarketplaceEtsy, "living-room"},
	{"etsy-2230print", "Botanical print set of three", "64.50", domain.MarketplaceEtsy, "bedroom"},
	{"amz-B09DESK77", "Walnut writing desk", "379.00", domain.MarketplaceAmazon, "study"},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/.visionboard")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data path: %v", err)
	}

	ctx := context.Background()
	slogger := logger.Discard().Logger

	fmt.Printf("Seeding %s in %s\n", *ownerID, dataPath)

	// Tier
	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()
	subs := subscription.NewService(client, nil, 2*time.Second, slogger)
	if err := subs.SetTier(ctx, *ownerID, domain.Tier(*tier)); err != nil {
		log.Fatalf("Failed to set tier: %v", err)
	}
	fmt.Printf("  tier: %s\n", *tier)

	// Liked products
	db, err := sqlite.Open(filepath.Join(dataPath, "visionboard.db"), slogger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(dataPath, "search"), Logger: slogger})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	products := catalog.New(db, index, slogger)
	for _, p := range sampleProducts {
		_, err := products.Like(ctx, *ownerID, p.project, domain.Product{
			ID:          p.id,
			Name:        p.name,
			Price:       decimal.RequireFromString(p.price),
			Marketplace: p.marketplace,
		})
		if err != nil {
			log.Fatalf("Failed to like %s: %v", p.id, err)
		}
	}
	fmt.Printf("  liked products: %d\n", len(sampleProducts))

	// Token
	key, err := auth.LoadOrGenerateKey(dataPath)
	if err != nil {
		log.Fatalf("Failed to load token key: %v", err)
	}
	tokens, err := auth.NewTokenService(key, *tokenTTL)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	token, err := tokens.GenerateAccessToken(*ownerID)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Printf("\nAuthorization: Bearer %s\n", token)
}
