package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zen-systems/stagetrack/pkg/node"
)

func TestStagesRegister(t *testing.T) {
	reg := node.NewRegistry()
	if err := reg.Register(randomNumber); err != nil {
		t.Fatalf("register RandomNumber: %v", err)
	}
	if err := reg.Register(sumNumbers); err != nil {
		t.Fatalf("register SumNumbers: %v", err)
	}
}

func TestRandomNumberIsSeeded(t *testing.T) {
	env := &node.Env{Class: "RandomNumber", ID: "0", Logger: zerolog.Nop()}
	a, err := randomNumber.Run(context.Background(), randomParams{Seed: 7, Max: 10}, env)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := randomNumber.Run(context.Background(), randomParams{Seed: 7, Max: 10}, env)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.Outs["number"] != b.Outs["number"] {
		t.Fatalf("expected the same number for the same seed")
	}
	if n := a.Outs["number"].(int); n < 0 || n >= 10 {
		t.Fatalf("number %d out of range", n)
	}
}

func TestSumNumbersReadsDeps(t *testing.T) {
	dir := t.TempDir()
	var deps []string
	for i, content := range []string{"3\n", "4\n"} {
		path := filepath.Join(dir, string(rune('a'+i))+".json")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write dep: %v", err)
		}
		deps = append(deps, path)
	}

	env := &node.Env{Class: "SumNumbers", ID: "0", Deps: deps, Logger: zerolog.Nop()}
	res, err := sumNumbers.Run(context.Background(), sumParams{Offset: 1}, env)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Outs["total"] != 8 {
		t.Fatalf("expected total 8, got %v", res.Outs["total"])
	}
}
