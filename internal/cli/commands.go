package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/engine"
	"github.com/llmsim/llmsim/internal/types"
	"github.com/llmsim/llmsim/sdk/llmsim"
)

func runGenerate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: llmsim generate <chat|embedding|config|requests>")
	}
	sub := args[0]

	fs := flag.NewFlagSet("generate "+sub, flag.ContinueOnError)
	model := fs.String("model", "gpt-4", "model id")
	prompt := fs.String("prompt", "Hello, world!", "prompt text")
	seed := fs.Int64("seed", 42, "deterministic seed")
	count := fs.Int("count", 5, "number of requests for 'requests'")
	dimensions := fs.Int("dimensions", 1536, "embedding dimensions")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Latency.Enabled = false
	cfg.Seed = seed
	eng := engine.New(cfg)

	switch sub {
	case "chat":
		req := &types.ChatRequest{
			Model: *model,
			Messages: []types.Message{
				{Role: types.RoleUser, Content: types.MessageContent{Plain: *prompt}},
			},
		}
		resp, aerr := eng.ChatCompletion(context.Background(), req)
		if aerr != nil {
			return aerr
		}
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(data))
		return nil

	case "embedding":
		gen := engine.NewGenerator(seed)
		vec := gen.GenerateEmbedding(*dimensions, *prompt)
		data, _ := json.Marshal(vec)
		fmt.Println(string(data))
		return nil

	case "config":
		return emit(config.Default(), "yaml", os.Stdout)

	case "requests":
		// Sample request bodies for test fixtures, with real tokenizer
		// counts alongside the engine's heuristic estimate.
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return fmt.Errorf("load tokenizer: %w", err)
		}
		for i := 0; i < *count; i++ {
			text := fmt.Sprintf("%s (request %d)", *prompt, i+1)
			req := types.ChatRequest{
				Model: *model,
				Messages: []types.Message{
					{Role: types.RoleUser, Content: types.MessageContent{Plain: text}},
				},
			}
			body, _ := json.Marshal(req)
			ids, _, err := enc.Encode(text)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t# tokenizer=%d heuristic=%d\n", body, len(ids), engine.EstimateTokens(text))
		}
		return nil

	default:
		return fmt.Errorf("unknown generate subcommand %q", sub)
	}
}

func runBenchmark(args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	url := fs.String("url", "http://localhost:8080", "simulator base URL")
	apiKey := fs.String("api-key", "", "API key")
	model := fs.String("model", "gpt-4", "model id")
	total := fs.Int("requests", 100, "total requests")
	concurrency := fs.Int("concurrency", 10, "concurrent workers")
	rps := fs.Float64("rps", 0, "target requests per second (0 = unpaced)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := llmsim.New(*url, llmsim.WithAPIKey(*apiKey))

	var limiter *rate.Limiter
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), 1)
	}

	type result struct {
		latency time.Duration
		err     error
	}
	results := make([]result, *total)

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*concurrency)

	for i := 0; i < *total; i++ {
		i := i
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			req := &types.ChatRequest{
				Model: *model,
				Messages: []types.Message{
					{Role: types.RoleUser, Content: types.MessageContent{Plain: "benchmark"}},
				},
			}
			reqStart := time.Now()
			_, err := client.Chat(ctx, req)
			results[i] = result{latency: time.Since(reqStart), err: err}
			// Individual request failures are recorded, not fatal.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	var ok, failed int
	var sum time.Duration
	min, max := time.Duration(0), time.Duration(0)
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		ok++
		sum += r.latency
		if min == 0 || r.latency < min {
			min = r.latency
		}
		if r.latency > max {
			max = r.latency
		}
	}

	fmt.Printf("requests:    %d (%d ok, %d failed)\n", *total, ok, failed)
	fmt.Printf("elapsed:     %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("throughput:  %.1f req/s\n", float64(ok)/elapsed.Seconds())
	if ok > 0 {
		fmt.Printf("latency:     min=%v avg=%v max=%v\n",
			min.Round(time.Millisecond),
			(sum / time.Duration(ok)).Round(time.Millisecond),
			max.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d requests failed", failed)
	}
	return nil
}

func runClient(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: llmsim client <chat|embed|interactive>")
	}
	sub := args[0]

	fs := flag.NewFlagSet("client "+sub, flag.ContinueOnError)
	url := fs.String("url", "http://localhost:8080", "simulator base URL")
	apiKey := fs.String("api-key", "", "API key")
	model := fs.String("model", "gpt-4", "model id")
	prompt := fs.String("prompt", "Hello!", "prompt text")
	stream := fs.Bool("stream", false, "stream the response")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	client := llmsim.New(*url, llmsim.WithAPIKey(*apiKey))
	ctx := context.Background()

	switch sub {
	case "chat":
		return clientChat(ctx, client, *model, *prompt, *stream)

	case "embed":
		resp, err := client.Embeddings(ctx, &types.EmbeddingsRequest{
			Model: "text-embedding-ada-002",
			Input: types.StringOrSlice{*prompt},
		})
		if err != nil {
			return err
		}
		fmt.Printf("model=%s vectors=%d dimensions=%d tokens=%d\n",
			resp.Model, len(resp.Data), len(resp.Data[0].Embedding), resp.Usage.TotalTokens)
		return nil

	case "interactive":
		fmt.Printf("interactive chat with %s (empty line to quit)\n", *model)
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				return nil
			}
			if err := clientChat(ctx, client, *model, line, true); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown client subcommand %q", sub)
	}
}

func clientChat(ctx context.Context, client *llmsim.Client, model, prompt string, stream bool) error {
	req := &types.ChatRequest{
		Model: model,
		Messages: []types.Message{
			{Role: types.RoleUser, Content: types.MessageContent{Plain: prompt}},
		},
	}

	if stream {
		err := client.ChatStream(ctx, req, func(chunk types.ChatChunk) error {
			for _, choice := range chunk.Choices {
				fmt.Print(choice.Delta.Content)
			}
			return nil
		})
		fmt.Println()
		return err
	}

	resp, err := client.Chat(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Choices) > 0 {
		fmt.Println(resp.Choices[0].Message.Content)
	}
	fmt.Printf("\n[tokens: prompt=%d completion=%d]\n", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return nil
}
