package timing

import (
	"fmt"
	"strings"
)

const (
	NamePair           = "pair"
	NameNearestPair    = "nearest_pair"
	NameVogels2011     = "vogels2011"
	NamePfisterTriplet = "pfister_triplet"
	NameRecurrent      = "recurrent"
	NameErbp           = "erbp"
	NameTarget         = "target"
	NameRatePyramidal  = "rate_pyramidal"
	NameDopaminePair   = "dopamine_pair"
)

// Tag is the rule selector stored in the first word of a parameter blob.
type Tag uint32

var tagNames = map[Tag]string{
	1: NamePair,
	2: NameNearestPair,
	3: NameVogels2011,
	4: NamePfisterTriplet,
	5: NameRecurrent,
	6: NameErbp,
	7: NameTarget,
	8: NameRatePyramidal,
	9: NameDopaminePair,
}

// NameForTag returns the rule name stored under tag.
func NameForTag(tag Tag) (string, error) {
	name, ok := tagNames[tag]
	if !ok {
		return "", fmt.Errorf("unknown timing rule tag %d", tag)
	}
	return name, nil
}

// TagForName returns the blob tag of a rule name or alias.
func TagForName(name string) (Tag, error) {
	normalized := NormalizeRuleName(name)
	for tag, n := range tagNames {
		if n == normalized {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("unknown timing rule %q", name)
}

// Names lists every rule in tag order.
func Names() []string {
	names := make([]string, 0, len(tagNames))
	for tag := Tag(1); int(tag) <= len(tagNames); tag++ {
		names = append(names, tagNames[tag])
	}
	return names
}

func NormalizeRuleName(rule string) string {
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case NamePair, "pair_stdp", "all_to_all":
		return NamePair
	case NameNearestPair, "nearest", "nearest_neighbour", "nearest_neighbor":
		return NameNearestPair
	case NameVogels2011, "vogels", "vogels_2011", "inhibitory":
		return NameVogels2011
	case NamePfisterTriplet, "triplet", "pfister":
		return NamePfisterTriplet
	case NameRecurrent, "recurrent_stdp", "accumulator":
		return NameRecurrent
	case NameErbp, "e_rbp", "random_backprop":
		return NameErbp
	case NameTarget, "target_rate":
		return NameTarget
	case NameRatePyramidal, "pyramidal":
		return NameRatePyramidal
	case NameDopaminePair, "dopamine", "neuromodulated_pair":
		return NameDopaminePair
	default:
		return strings.ToLower(strings.TrimSpace(rule))
	}
}
