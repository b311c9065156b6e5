// Package engine implements the core simulation pipeline: synthetic
// response generation, chaos injection, runtime statistics, and the
// orchestrating SimulationEngine.
package engine

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"unicode"

	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/types"
)

// Generator synthesizes response text, embeddings, and stream tokens. It is
// safe for concurrent use: every call derives its own RNG from the base seed
// and the caller-supplied request id, so concurrent requests cannot perturb
// each other's output.
type Generator struct {
	seed      *int64
	templates []string
}

// NewGenerator creates a generator; a nil seed means non-deterministic.
func NewGenerator(seed *int64) *Generator {
	return &Generator{seed: seed, templates: defaultTemplates()}
}

func (g *Generator) rng(requestID uint64) *rand.Rand {
	if g.seed != nil {
		return rand.New(rand.NewSource(*g.seed + int64(requestID)))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// Generate produces the response text and its token estimate for the given
// conversation, completion cap, and generation config.
func (g *Generator) Generate(messages []types.Message, maxTokens int, cfg config.GenerationConfig, requestID uint64) (string, int) {
	rng := g.rng(requestID)

	upper := cfg.MaxTokens
	if maxTokens < upper {
		upper = maxTokens
	}
	lower := cfg.MinTokens
	if upper < lower {
		upper = lower
	}
	target := lower
	if upper > lower {
		target = lower + rng.Intn(upper-lower+1)
	}

	var content string
	switch cfg.Strategy {
	case config.StrategyLorem:
		content = generateLorem(target, rng)
	case config.StrategyEcho:
		content = g.generateEcho(messages, target, rng)
	case config.StrategyFixed:
		if len(cfg.Templates) > 0 {
			content = cfg.Templates[0]
		} else {
			content = "This is a simulated response."
		}
	case config.StrategyRandom:
		content = generateRandomText(target, rng)
	default:
		content = g.generateFromTemplates(messages, target, rng, cfg)
	}

	return content, EstimateTokens(content)
}

func (g *Generator) generateFromTemplates(messages []types.Message, targetTokens int, rng *rand.Rand, cfg config.GenerationConfig) string {
	templates := cfg.Templates
	if len(templates) == 0 {
		templates = g.templates
	}

	var b strings.Builder
	b.WriteString(templates[rng.Intn(len(templates))])

	targetChars := targetTokens * 4
	for b.Len() < targetChars {
		b.WriteString("\n\n")
		b.WriteString(contextualParagraph(messages, rng))
	}

	out := b.String()
	if len(out) > targetChars {
		out = out[:targetChars]
		if i := strings.LastIndexByte(out, ' '); i > 0 {
			out = out[:i]
		}
	}
	return out
}

func (g *Generator) generateEcho(messages []types.Message, targetTokens int, rng *rand.Rand) string {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Text()
	}
	out := fmt.Sprintf("I understand you're asking about: %q\n\nHere's my response to that:", last)

	targetChars := targetTokens * 4
	if len(out) < targetChars {
		padding := generateLorem((targetChars-len(out))/4, rng)
		out = out + "\n\n" + padding
	}
	return out
}

// contextualParagraph picks a paragraph pool by cheap keyword heuristics on
// the last message: a question mark selects the question pool, code words
// the code pool, "explain" the explanation pool.
func contextualParagraph(messages []types.Message, rng *rand.Rand) string {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Text()
	}
	lower := strings.ToLower(last)

	var pool []string
	switch {
	case strings.Contains(last, "?"):
		pool = questionResponses
	case strings.Contains(lower, "code") || strings.Contains(lower, "program"):
		pool = codeResponses
	case strings.Contains(lower, "explain"):
		pool = explanationResponses
	default:
		pool = generalResponses
	}
	return pool[rng.Intn(len(pool))]
}

// GenerateEmbedding produces a unit-norm vector deterministic in the input:
// the input seeds a dedicated RNG through a stable 64-bit hash, so the same
// string always yields the same vector regardless of the engine seed.
func (g *Generator) GenerateEmbedding(dimensions int, input string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(input))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, dimensions)
	var sumSq float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		sumSq += v * v
	}

	if mag := float32(math.Sqrt(sumSq)); mag > 0 {
		for i := range vec {
			vec[i] /= mag
		}
	}
	return vec
}

// Tokenize splits text into stream-sized pieces, breaking at whitespace,
// ASCII punctuation, or after roughly four characters.
func (g *Generator) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	for _, c := range text {
		current.WriteRune(c)
		if unicode.IsSpace(c) || isASCIIPunct(c) || current.Len() >= 4 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func isASCIIPunct(c rune) bool {
	return c < 128 && unicode.IsPunct(c) || c == '$' || c == '+' || c == '<' || c == '=' || c == '>' || c == '^' || c == '`' || c == '|' || c == '~'
}

// EstimateTokens approximates the token count of text at ~4 chars/token.
func EstimateTokens(text string) int {
	n := int(math.Ceil(float64(len(text)) / 4))
	if n < 1 {
		return 1
	}
	return n
}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit",
	"sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore", "et", "dolore",
	"magna", "aliqua", "enim", "ad", "minim", "veniam", "quis", "nostrud",
	"exercitation", "ullamco", "laboris", "nisi", "aliquip", "ex", "ea", "commodo",
	"consequat", "duis", "aute", "irure", "in", "reprehenderit", "voluptate",
	"velit", "esse", "cillum", "fugiat", "nulla", "pariatur", "excepteur", "sint",
	"occaecat", "cupidatat", "non", "proident", "sunt", "culpa", "qui", "officia",
	"deserunt", "mollit", "anim", "id", "est", "laborum",
}

// generateLorem emits roughly one lorem word per token, capitalizes the
// first word, and inserts a period about every twelve words.
func generateLorem(targetTokens int, rng *rand.Rand) string {
	if targetTokens <= 0 {
		targetTokens = 1
	}
	words := make([]string, targetTokens)
	for i := range words {
		words[i] = loremWords[rng.Intn(len(loremWords))]
	}

	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToUpper(w[:1]) + w[1:])
			continue
		}
		if i%12 == 0 {
			b.WriteString(". ")
			b.WriteString(strings.ToUpper(w[:1]) + w[1:])
			continue
		}
		b.WriteByte(' ')
		b.WriteString(w)
	}
	return b.String()
}

var randomVocab = []string{
	"the", "a", "is", "are", "was", "were", "have", "has", "had", "do", "does",
	"did", "will", "would", "could", "should", "may", "might", "must", "can",
	"this", "that", "these", "those", "it", "they", "we", "you", "he", "she",
	"system", "data", "model", "process", "function", "result", "value", "type",
	"input", "output", "request", "response", "error", "success", "status",
	"configuration", "parameter", "option", "setting", "property", "attribute",
}

func generateRandomText(targetTokens int, rng *rand.Rand) string {
	if targetTokens <= 0 {
		targetTokens = 1
	}
	words := make([]string, targetTokens)
	for i := range words {
		words[i] = randomVocab[rng.Intn(len(randomVocab))]
	}
	return strings.Join(words, " ")
}

func defaultTemplates() []string {
	return []string{
		"I'd be happy to help you with that. Let me provide a detailed response.",
		"Based on your request, here's what I can tell you.",
		"That's a great question. Let me explain.",
		"I understand what you're looking for. Here's my analysis.",
		"Let me address your query comprehensively.",
	}
}

var questionResponses = []string{
	"To answer your question directly, the key consideration here is understanding the underlying principles involved.",
	"The answer depends on several factors that we should examine carefully.",
	"There are multiple perspectives to consider when addressing this question.",
	"Let me break down the answer into manageable parts for clarity.",
}

var codeResponses = []string{
	"Here's an implementation approach that follows best practices and maintains code clarity.",
	"The solution involves several components working together efficiently.",
	"This code pattern is commonly used in production systems for its reliability.",
	"Consider this implementation which balances performance with maintainability.",
}

var explanationResponses = []string{
	"To understand this concept, we need to start with the fundamentals.",
	"This works by combining several mechanisms that interact in specific ways.",
	"The underlying principle is based on well-established patterns in the field.",
	"Let me walk you through the key components and how they relate to each other.",
}

var generalResponses = []string{
	"This is an important topic that deserves careful consideration.",
	"There are several aspects to explore in this area.",
	"The approach I recommend takes into account multiple factors.",
	"Based on the available information, here's what we can determine.",
}
