package match

import (
	"math/rand"
	"time"

	"github.com/yola1107/pokerdice/internal/model"
	"github.com/yola1107/pokerdice/library/ext"
)

type dice struct {
	r *rand.Rand
}

// NewRandomizer returns a Randomizer seeded from the clock.
func NewRandomizer() Randomizer {
	return NewSeededRandomizer(time.Now().UnixNano())
}

func NewSeededRandomizer(seed int64) Randomizer {
	return &dice{r: ext.NewRand(seed)}
}

func (d *dice) Face() model.Face {
	return model.Faces[ext.RandIntWith(d.r, 0, len(model.Faces))]
}

func (d *dice) Permute(ids []string) []string {
	return ext.Shuffle(d.r, ids)
}
