package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/refscout/refscout/pkg/collect"
	"github.com/refscout/refscout/pkg/platforms"
	"github.com/refscout/refscout/pkg/platforms/dev"
	"github.com/refscout/refscout/pkg/storage"
	"github.com/refscout/refscout/pkg/video"
)

func main() {
	// Usage: go run *.go -db /tmp/refscout.sqlite

	dbFlag := flag.String("db", "refscout.sqlite", "SQLite database file")
	flag.Parse()

	db, err := storage.Open(*dbFlag)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Real searchers live in pkg/platforms/{youtube,vimeo,behance}; the
	// offline catalog needs no API keys.
	var searchers []platforms.Searcher
	for _, p := range video.SearchablePlatforms() {
		searchers = append(searchers, dev.New(p))
	}

	res, err := collect.New(collect.Config{
		Settings:  db,
		Videos:    db,
		Searchers: searchers,
	}).Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, v := range res.Videos {
		fmt.Println(v.Platform, v.Metrics.Score, v.Title, v.URL)
	}
	fmt.Printf("%d selected, %d newly saved\n", res.TotalCollected, res.NewlySaved)
}
