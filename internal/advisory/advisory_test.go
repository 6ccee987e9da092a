package advisory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"kasapos/backend/internal/cache"
	"kasapos/backend/internal/domain"
)

type stubGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func (s *stubGenerator) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func lines(names ...string) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(names))
	for _, n := range names {
		out = append(out, domain.CartLine{Name: n, Quantity: 1})
	}
	return out
}

func TestSuggestReturnsCompletionVerbatim(t *testing.T) {
	gen := &stubGenerator{text: "  Menemen\n\n- Yumurta\n- Domates  "}
	a := New(gen, nil, time.Minute, "Uzunoğlu Market", zaptest.NewLogger(t))

	advice, err := a.Suggest(context.Background(), KindRecipe, lines("Yumurta (15li)", "Domates Salçası"))
	require.NoError(t, err)
	assert.Equal(t, "  Menemen\n\n- Yumurta\n- Domates  ", advice.Text)
	assert.False(t, advice.Fallback)
	assert.Equal(t, KindRecipe, advice.Kind)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "Yumurta (15li), Domates Salçası")
	assert.Contains(t, gen.prompts[0], "Uzunoğlu Market")
}

func TestSuggestFallsBackOnFailure(t *testing.T) {
	for _, tc := range []struct {
		kind string
		want string
	}{
		{KindRecipe, recipeFallback},
		{KindCrossSell, crossSellFallback},
	} {
		t.Run(tc.kind, func(t *testing.T) {
			a := New(&stubGenerator{err: errors.New("503")}, nil, time.Minute, "", zaptest.NewLogger(t))

			advice, err := a.Suggest(context.Background(), tc.kind, lines("Cips"))
			require.NoError(t, err)
			assert.True(t, advice.Fallback)
			assert.Equal(t, tc.want, advice.Text)
		})
	}
}

func TestSuggestBlankCompletionFallsBack(t *testing.T) {
	a := New(&stubGenerator{text: " \n "}, nil, time.Minute, "", zaptest.NewLogger(t))

	advice, err := a.Suggest(context.Background(), KindCrossSell, lines("Makarna"))
	require.NoError(t, err)
	assert.True(t, advice.Fallback)
}

func TestSuggestWithoutGeneratorFallsBack(t *testing.T) {
	a := New(nil, nil, 0, "", nil)

	advice, err := a.Suggest(context.Background(), KindRecipe, lines("Makarna"))
	require.NoError(t, err)
	assert.Equal(t, Fallback(KindRecipe), advice)
}

func TestSuggestRejectsBadInput(t *testing.T) {
	a := New(&stubGenerator{text: "ok"}, nil, time.Minute, "", zaptest.NewLogger(t))

	_, err := a.Suggest(context.Background(), "horoscope", lines("Cips"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = a.Suggest(context.Background(), KindRecipe, nil)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestSuggestUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gen := &stubGenerator{text: "Çay yanına şeker ve kurabiye"}
	a := New(gen, cache.NewRedisAdvisoryCacheFromClient(client), time.Minute, "Uzunoğlu Market", zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := a.Suggest(ctx, KindCrossSell, lines("Çay (1kg)", "Süt (1L)"))
	require.NoError(t, err)
	second, err := a.Suggest(ctx, KindCrossSell, lines("Süt (1L)", "Çay (1kg)"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls())

	_, err = a.Suggest(ctx, KindRecipe, lines("Çay (1kg)", "Süt (1L)"))
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
}

func TestFallbacksAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gen := &stubGenerator{err: errors.New("down")}
	a := New(gen, cache.NewRedisAdvisoryCacheFromClient(client), time.Minute, "", zaptest.NewLogger(t))

	_, _ = a.Suggest(context.Background(), KindRecipe, lines("Ekmek (200g)"))
	_, _ = a.Suggest(context.Background(), KindRecipe, lines("Ekmek (200g)"))
	assert.Equal(t, 2, gen.calls())
	assert.Empty(t, mr.Keys())
}

func TestBuildPrompt(t *testing.T) {
	recipe := BuildPrompt(KindRecipe, "", []string{"Makarna", "Beyaz Peynir"})
	assert.True(t, strings.Contains(recipe, "Makarna, Beyaz Peynir"))
	assert.Contains(t, recipe, "Turkish dish")

	cross := BuildPrompt(KindCrossSell, "Uzunoğlu Market", []string{"Kola (1L)"})
	assert.Contains(t, cross, "3 complementary products")
	assert.Contains(t, cross, `"Uzunoğlu Market"`)
}

func TestCacheKeyIgnoresOrder(t *testing.T) {
	a := buildCacheKey(KindRecipe, "s", []string{"b", "a"})
	b := buildCacheKey(KindRecipe, "s", []string{"a", "b"})
	c := buildCacheKey(KindCrossSell, "s", []string{"a", "b"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, KindRecipe+":"))
}

func TestUnavailableGenerator(t *testing.T) {
	_, err := UnavailableGenerator{}.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)

	_, err = NewGeminiGenerator(context.Background(), "", "gemini-2.5-flash")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
}
