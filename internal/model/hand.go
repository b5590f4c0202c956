package model

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// HandSize is the number of dice in a complete hand.
const HandSize = 5

// HandRank classifies a hand. Higher ranks are worth more points.
type HandRank int8

const (
	NoValue HandRank = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	FullHouse
	FourOfAKind
	FiveOfAKind
)

var rankNames = map[HandRank]string{
	NoValue:      "NO_VALUE",
	OnePair:      "ONE_PAIR",
	TwoPair:      "TWO_PAIR",
	ThreeOfAKind: "THREE_OF_A_KIND",
	Straight:     "STRAIGHT",
	FullHouse:    "FULL_HOUSE",
	FourOfAKind:  "FOUR_OF_A_KIND",
	FiveOfAKind:  "FIVE_OF_A_KIND",
}

var rankPoints = map[HandRank]int{
	NoValue:      0,
	OnePair:      10,
	TwoPair:      20,
	ThreeOfAKind: 30,
	Straight:     40,
	FullHouse:    50,
	FourOfAKind:  60,
	FiveOfAKind:  100,
}

// the only two runs five distinct faces can form
var straights = [][]Face{
	{Ace, King, Queen, Jack, Ten},
	{King, Queen, Jack, Ten, Nine},
}

func (r HandRank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("HandRank(%d)", int8(r))
}

func (r HandRank) Points() int {
	return rankPoints[r]
}

func (r HandRank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Hand is the dice a player holds, indexed by position.
type Hand []Face

// Complete reports whether the hand holds exactly HandSize valid dice.
func (h Hand) Complete() bool {
	return len(h) == HandSize && lo.EveryBy(h, Face.Valid)
}

// Weight sums the tie-break weights of every die.
func (h Hand) Weight() int {
	return lo.SumBy(h, Face.Weight)
}

func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// Evaluate classifies the hand by its face counts. Short hands use the same
// counting rules and an empty hand has no value.
func Evaluate(h Hand) HandRank {
	if len(h) == 0 {
		return NoValue
	}

	counts := lo.Values(lo.CountValues(h))
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	switch {
	case counts[0] >= 5:
		return FiveOfAKind
	case counts[0] == 4:
		return FourOfAKind
	case counts[0] == 3 && len(counts) > 1 && counts[1] == 2:
		return FullHouse
	case isStraight(h):
		return Straight
	case counts[0] == 3:
		return ThreeOfAKind
	case counts[0] == 2 && len(counts) > 1 && counts[1] == 2:
		return TwoPair
	case counts[0] == 2:
		return OnePair
	default:
		return NoValue
	}
}

func isStraight(h Hand) bool {
	if len(h) != HandSize || len(lo.Uniq(h)) != HandSize {
		return false
	}
	for _, run := range straights {
		if lo.Every(run, h) {
			return true
		}
	}
	return false
}

// Score is the point value of the hand's rank.
func Score(h Hand) int {
	return Evaluate(h).Points()
}

// Beats reports whether a wins over b: higher score first, then the higher
// face-weight sum.
func Beats(a, b Hand) bool {
	sa, sb := Score(a), Score(b)
	if sa != sb {
		return sa > sb
	}
	return a.Weight() > b.Weight()
}
