package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Shogi-bot/internal/engine"
)

// usicheck starts the configured engine and searches the initial position
// with one preset.
func main() {
	path := strings.TrimSpace(os.Getenv("USI_ENGINE_PATH"))
	if path == "" {
		log.Fatal("USI_ENGINE_PATH is required")
	}
	preset := "level3"
	if len(os.Args) > 1 {
		preset = os.Args[1]
	}

	eng, err := engine.NewEngine(path)
	if err != nil {
		log.Fatalf("engine init error: %v", err)
	}
	defer func() { _ = eng.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := eng.Evaluate(ctx, engine.EvaluateRequest{PresetName: preset})
	if err != nil {
		log.Fatalf("search error: %v", err)
	}

	log.Printf("preset=%s took=%s bestmove=%s", res.Preset.Name, res.Duration, res.EngineBestMove)
	for i, c := range res.Candidates {
		fmt.Printf("%d. %s eval=%d mate=%t pv=%s\n", i+1, c.Move, c.EvalCP, c.Mate, strings.Join(c.Principal, " "))
	}
	fmt.Printf("chosen: %s\n", res.Chosen.Move)
}
