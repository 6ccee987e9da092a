package advisory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"kasapos/backend/internal/cache"
	"kasapos/backend/internal/domain"
)

const (
	KindRecipe    = "recipe"
	KindCrossSell = "cross_sell"
)

const (
	recipeFallback    = "Sorry, the AI service is unreachable right now. Please try again."
	crossSellFallback = "The suggestion service is not responding right now."
)

var (
	ErrUnknownKind = errors.New("unknown advisory kind")
	ErrNoItems     = errors.New("no items to advise on")
)

// Generator produces one free-text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Advisor struct {
	generator Generator
	cache     cache.AdvisoryCache
	cacheTTL  time.Duration
	storeName string
	logger    *zap.Logger
}

func New(generator Generator, cacheStore cache.AdvisoryCache, cacheTTL time.Duration, storeName string, logger *zap.Logger) *Advisor {
	if generator == nil {
		generator = UnavailableGenerator{}
	}
	if cacheStore == nil {
		cacheStore = cache.NoopAdvisoryCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Advisor{
		generator: generator,
		cache:     cacheStore,
		cacheTTL:  cacheTTL,
		storeName: storeName,
		logger:    logger.Named("advisory"),
	}
}

func IsKind(kind string) bool {
	return kind == KindRecipe || kind == KindCrossSell
}

// Suggest asks the generator about the given cart lines. Service failures
// never surface as errors: the advice carries the kind's fixed fallback text
// instead. Only an unknown kind or an empty line list is an error.
func (a *Advisor) Suggest(ctx context.Context, kind string, lines []domain.CartLine) (domain.Advice, error) {
	if !IsKind(kind) {
		return domain.Advice{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	names := itemNames(lines)
	if len(names) == 0 {
		return domain.Advice{}, ErrNoItems
	}

	key := buildCacheKey(kind, a.storeName, names)
	if cached, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		a.logger.Warn("advisory cache read failed", zap.String("kind", kind), zap.Error(err))
	}

	startedAt := time.Now()
	text, err := a.generator.Generate(ctx, BuildPrompt(kind, a.storeName, names))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		a.logger.Warn("advisory call failed, using fallback",
			zap.String("kind", kind),
			zap.Duration("elapsed", time.Since(startedAt)),
			zap.Error(err),
		)
		return Fallback(kind), nil
	}

	advice := domain.Advice{Kind: kind, Title: title(kind), Text: text}
	if err := a.cache.Set(ctx, key, &advice, a.cacheTTL); err != nil {
		a.logger.Warn("advisory cache write failed", zap.String("kind", kind), zap.Error(err))
	}
	return advice, nil
}

// Fallback is the fixed answer shown when the service cannot be used.
func Fallback(kind string) domain.Advice {
	text := crossSellFallback
	if kind == KindRecipe {
		text = recipeFallback
	}
	return domain.Advice{Kind: kind, Title: title(kind), Text: text, Fallback: true}
}

func title(kind string) string {
	if kind == KindRecipe {
		return "A recipe for your customer"
	}
	return "Smart cross-sell suggestion"
}

// BuildPrompt embeds the store name and the comma-joined item names in the
// instruction for kind.
func BuildPrompt(kind string, storeName string, names []string) string {
	items := strings.Join(names, ", ")
	where := "a grocery store"
	if storeName != "" {
		where = fmt.Sprintf("the grocery store %q", storeName)
	}

	if kind == KindRecipe {
		return fmt.Sprintf(
			"I am at the till of %s. The customer's basket contains: %s. "+
				"Suggest one practical and tasty Turkish dish that uses most of these ingredients. "+
				"Format: dish name, ingredients (short list), preparation (2-3 sentences). "+
				"Keep it short and write in a friendly tone.",
			where, items,
		)
	}
	return fmt.Sprintf(
		"I am a cashier at %s. The customer's basket contains: %s. "+
			"Suggest 3 complementary products that go well with this basket "+
			"(for example sauce or cheese for someone buying pasta). "+
			"List only the product names, each with a one-sentence reason.",
		where, items,
	)
}

func itemNames(lines []domain.CartLine) []string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if name := strings.TrimSpace(line.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func buildCacheKey(kind string, storeName string, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted)+2)
	parts = append(parts, kind, storeName)
	parts = append(parts, sorted...)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return kind + ":" + hex.EncodeToString(hash[:])
}
