package prompt

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/samber/do"
)

const Default = "A cute cat wearing a wizard hat"

var Examples = []string{
	"A cute cat wearing a wizard hat",
	"A futuristic cityscape at sunset with flying cars",
	"A magical forest with glowing mushrooms and fairies",
	"A steampunk robot playing chess with a human",
	"An underwater palace with colorful coral and fish",
	"A cyberpunk street scene with neon lights",
}

var ErrNoPrompts = errors.New("no example prompts configured")

type Randomizer struct {
	prompts []string
	mu      sync.Mutex
	rnd     *rand.Rand
}

func New(prompts []string, seed int64) *Randomizer {
	return &Randomizer{prompts: prompts, rnd: rand.New(rand.NewSource(seed))}
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, time.Now().UTC().UnixNano()), nil
}

func (r *Randomizer) Prompts() []string {
	return r.prompts
}

func (r *Randomizer) Randomize(ctx context.Context) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	if len(r.prompts) == 0 {
		return "", ErrNoPrompts
	}

	r.mu.Lock()
	idx := r.rnd.Intn(len(r.prompts))
	r.mu.Unlock()

	log.Info("picked example prompt", "prompt", r.prompts[idx])
	return r.prompts[idx], nil
}
