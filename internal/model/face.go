package model

import (
	"encoding/json"
	"fmt"
)

// Face is one side of a poker die.
type Face int8

const (
	FaceNone Face = iota
	Ace
	King
	Queen
	Jack
	Ten
	Nine
)

// Faces lists every die face, highest first.
var Faces = []Face{Ace, King, Queen, Jack, Ten, Nine}

var faceNames = map[Face]string{
	Ace:   "ACE",
	King:  "KING",
	Queen: "QUEEN",
	Jack:  "JACK",
	Ten:   "TEN",
	Nine:  "NINE",
}

// faceWeights only break ties between equal scores.
var faceWeights = map[Face]int{
	Ace:   1,
	King:  2,
	Queen: 3,
	Jack:  4,
	Ten:   5,
	Nine:  6,
}

func (f Face) Valid() bool {
	_, ok := faceNames[f]
	return ok
}

// Weight is the tie-break weight of the face; invalid faces weigh nothing.
func (f Face) Weight() int {
	return faceWeights[f]
}

func (f Face) String() string {
	if name, ok := faceNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Face(%d)", int8(f))
}

func (f Face) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Face) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for face, n := range faceNames {
		if n == name {
			*f = face
			return nil
		}
	}
	return fmt.Errorf("unknown die face %q", name)
}
