package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/zen-systems/stagetrack/pkg/node"
)

type randomParams struct {
	Seed int64 `json:"seed"`
	Max  int   `json:"max" validate:"gte=1"`
}

var randomNumber = &node.Definition[randomParams]{
	Class:    "RandomNumber",
	MultiUse: true,
	Defaults: randomParams{Seed: 42, Max: 100},
	Fields:   []node.Field{node.Outs("number")},
	Run: func(_ context.Context, p randomParams, env *node.Env) (*node.Results, error) {
		n := rand.New(rand.NewSource(p.Seed)).Intn(p.Max)
		env.Logger.Info().Int("number", n).Msg("drew number")
		return &node.Results{Outs: map[string]any{"number": n}}, nil
	},
}

type sumParams struct {
	Offset int `json:"offset"`
}

// sumNumbers adds the JSON numbers found in its deps.
var sumNumbers = &node.Definition[sumParams]{
	Class:    "SumNumbers",
	Defaults: sumParams{},
	Fields:   []node.Field{node.Outs("total"), node.Metrics("summary")},
	Run: func(_ context.Context, p sumParams, env *node.Env) (*node.Results, error) {
		total := p.Offset
		for _, dep := range env.Deps {
			data, err := os.ReadFile(dep)
			if err != nil {
				return nil, err
			}
			var n int
			if err := json.Unmarshal(data, &n); err != nil {
				return nil, fmt.Errorf("dep %s is not a number: %w", dep, err)
			}
			total += n
		}
		return &node.Results{
			Outs:    map[string]any{"total": total},
			Metrics: map[string]any{"summary": map[string]any{"inputs": len(env.Deps), "total": total}},
		}, nil
	},
}
