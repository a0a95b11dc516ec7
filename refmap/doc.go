// Package refmap builds the input half of the reference map: calendar flags
// for key periods, indexation factors, and the V/S/C/L input-group arrays,
// all materialized against a timeline.Timeline. Formula outputs (R/M refs)
// are added later by the scheduler/engine as they are evaluated.
package refmap

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Config is the model's monthly timeline bounds.
type Config struct {
	StartYear  int `json:"startYear"`
	StartMonth int `json:"startMonth"`
	EndYear    int `json:"endYear"`
	EndMonth   int `json:"endMonth"`
}

// KeyPeriod is a named, bounded span of months used as an F<id> flag and as
// a potential linkage target for an input group.
type KeyPeriod struct {
	ID         int `json:"id"`
	StartYear  int `json:"startYear"`
	StartMonth int `json:"startMonth"`
	EndYear    int `json:"endYear"`
	EndMonth   int `json:"endMonth"`
}

// Index is a compound-growth indexation definition producing I<id>.
type Index struct {
	ID                     int     `json:"id"`
	Name                   string  `json:"name"`
	IndexationStartYear    int     `json:"indexationStartYear"`
	IndexationStartMonth   int     `json:"indexationStartMonth"`
	IndexationRate         float64 `json:"indexationRate"`
	IndexationPeriod       string  `json:"indexationPeriod"` // "annual" | "monthly"
}

// LinkedKeyPeriodID is either a key-period id (encoded as a JSON number or a
// numeric string) or the literal "constant"/empty meaning "unlinked". Input
// documents in the wild use either encoding, so this type accepts both.
type LinkedKeyPeriodID struct {
	Raw string
	Set bool
}

func (l *LinkedKeyPeriodID) UnmarshalJSON(b []byte) error {
	var asNum float64
	if err := json.Unmarshal(b, &asNum); err == nil {
		l.Raw = strconv.FormatInt(int64(asNum), 10)
		l.Set = true
		return nil
	}
	var asStr string
	if err := json.Unmarshal(b, &asStr); err != nil {
		return fmt.Errorf("linkedKeyPeriodId: %w", err)
	}
	l.Raw = asStr
	l.Set = asStr != ""
	return nil
}

// Linked reports whether this group is linked to a specific key period, and
// if so returns its id.
func (l LinkedKeyPeriodID) Linked() (id string, ok bool) {
	if !l.Set || l.Raw == "constant" || l.Raw == "" {
		return "", false
	}
	return l.Raw, true
}

// InputGroup is the shared definition of a family of inputs: mode, default
// frequency, and optional key-period linkage.
type InputGroup struct {
	ID                int               `json:"id"`
	GroupType         string            `json:"groupType"`
	EntryMode         string            `json:"entryMode"`
	Frequency         string            `json:"frequency"`
	LinkedKeyPeriodID LinkedKeyPeriodID `json:"linkedKeyPeriodId"`
}

// Input is a single sparse or scalar entry belonging to an InputGroup.
type Input struct {
	ID             int                `json:"id"`
	GroupID        int                `json:"groupId"`
	EntryMode      string             `json:"entryMode"`
	ValueFrequency string             `json:"valueFrequency"`
	Value          float64            `json:"value"`
	Values         map[string]float64 `json:"values"`
	SpreadMethod   string             `json:"spreadMethod"`
}

// Document is the full "model-inputs.json" structure.
type Document struct {
	Config           Config       `json:"config"`
	KeyPeriods       []KeyPeriod  `json:"keyPeriods"`
	Indices          []Index      `json:"indices"`
	InputGlassGroups []InputGroup `json:"inputGlassGroups"`
	InputGlass       []Input      `json:"inputGlass"`
}
