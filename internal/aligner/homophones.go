package aligner

// homophoneGroups is the symmetric equivalence table of character
// confusions, covering frequent Mandarin confusions an ASR backend is
// prone to. Each
// inner slice is a set of runes considered mutually interchangeable for
// scoring purposes.
var homophoneGroups = [][]rune{
	{'氣', '汽', '棄'},
	{'在', '再'},
	{'的', '得', '地'},
	{'他', '她', '它', '牠'},
	{'做', '作'},
	{'那', '哪'},
	{'因', '音', '陰'},
	{'進', '近'},
	{'是', '事', '視'},
	{'以', '已', '己'},
}

var homophoneIndex map[rune]int

func init() {
	homophoneIndex = make(map[rune]int)
	for i, group := range homophoneGroups {
		for _, r := range group {
			homophoneIndex[r] = i
		}
	}
}

// isHomophone reports whether a and b belong to the same registered
// equivalence group. Equal runes are not "homophones" — callers check
// equality first.
func isHomophone(a, b rune) bool {
	if a == b {
		return false
	}
	ga, ok := homophoneIndex[a]
	if !ok {
		return false
	}
	gb, ok := homophoneIndex[b]
	if !ok {
		return false
	}
	return ga == gb
}
