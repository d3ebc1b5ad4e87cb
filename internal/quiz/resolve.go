package quiz

import (
	"fmt"
	"math/rand/v2"
)

// PersonaForScore resolves a persona via banded lookup, evaluated low-to-high
// with the first matching inclusive range winning.
func PersonaForScore(score int) (Persona, error) {
	for _, band := range defaultBands {
		if score >= band.min && score <= band.max {
			persona, ok := PersonaByID(band.personaID)
			if !ok {
				return Persona{}, fmt.Errorf("band %d..%d references unknown persona %q", band.min, band.max, band.personaID)
			}
			return persona, nil
		}
	}
	return Persona{}, fmt.Errorf("score %d outside all bands", score)
}

// RandomPersonas draws count distinct personas uniformly at random without
// replacement using a Fisher-Yates shuffle. rng may be nil to use the shared
// source; tests inject a seeded one.
func RandomPersonas(rng *rand.Rand, count int) ([]Persona, error) {
	pool := Personas()
	if count < 1 || count > len(pool) {
		return nil, fmt.Errorf("cannot draw %d personas from a pool of %d", count, len(pool))
	}

	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}
	// Walk from the end, swapping each slot with a uniformly chosen earlier
	// one; the prefix taken afterwards is an unbiased sample.
	for i := len(pool) - 1; i > 0; i-- {
		j := intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count], nil
}

// PersonaSet is the trio rendered on the results screen: the primary result
// plus the two alternates used for the composite image.
type PersonaSet struct {
	Primary Persona
	Left    Persona
	Right   Persona
}

// RandomPersonaSet draws three distinct personas for flows with no score
// signal (skip-photo and workshop paths).
func RandomPersonaSet(rng *rand.Rand) (PersonaSet, error) {
	picks, err := RandomPersonas(rng, 3)
	if err != nil {
		return PersonaSet{}, err
	}
	return PersonaSet{Primary: picks[0], Left: picks[1], Right: picks[2]}, nil
}

// PersonaSetForScore resolves the primary persona from the score and fills the
// alternates with random distinct catalog entries.
func PersonaSetForScore(rng *rand.Rand, score int) (PersonaSet, error) {
	primary, err := PersonaForScore(score)
	if err != nil {
		return PersonaSet{}, err
	}
	picks, err := RandomPersonas(rng, len(defaultPersonas))
	if err != nil {
		return PersonaSet{}, err
	}
	set := PersonaSet{Primary: primary}
	alternates := make([]Persona, 0, 2)
	for _, p := range picks {
		if p.ID == primary.ID {
			continue
		}
		alternates = append(alternates, p)
		if len(alternates) == 2 {
			break
		}
	}
	set.Left, set.Right = alternates[0], alternates[1]
	return set, nil
}
