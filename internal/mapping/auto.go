package mapping

import "strings"

// keywords per slot, matched as substrings of the lower-cased header.
// Slots are tried in this order so that "Surname" is claimed by lastName
// before firstName sees its "name" substring.
var keywords = []struct {
	slot  Slot
	words []string
}{
	{SlotURL, []string{"url", "link", "ссылка", "href", "site", "web", "tg", "tele"}},
	{SlotLastName, []string{"last", "surname", "фамилия", "family"}},
	{SlotFirstName, []string{"name", "first", "имя"}},
	{SlotPlatform, []string{"plat", "платформ", "соц", "social", "network", "channel"}},
}

// AutoMap guesses column bindings from header text. Each header is claimed
// by at most one slot and the first matching header wins a slot.
func AutoMap(headers []string) Mapping {
	m := New()
	claimed := make([]bool, len(headers))

	for _, kw := range keywords {
		for i, h := range headers {
			if claimed[i] || !matches(h, kw.words) {
				continue
			}
			m.bindings[kw.slot] = Column(h)
			claimed[i] = true
			break
		}
	}

	return m
}

// Rebase adapts prev to a newly loaded header set. Custom bindings and column
// bindings that still resolve are kept; stale column bindings are dropped and
// the freed slots are filled from AutoMap using headers not already bound.
func Rebase(prev Mapping, headers []string) Mapping {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	out := New()
	used := make(map[string]bool)
	for slot, b := range prev.bindings {
		switch b.Kind {
		case BindCustom:
			out.bindings[slot] = b
		case BindColumn:
			if known[b.Column] {
				out.bindings[slot] = b
				used[b.Column] = true
			}
		}
	}

	free := make([]string, 0, len(headers))
	for _, h := range headers {
		if !used[h] {
			free = append(free, h)
		}
	}

	guess := AutoMap(free)
	for _, slot := range Slots() {
		if out.Get(slot).IsSet() {
			continue
		}
		if b := guess.Get(slot); b.IsSet() {
			out.bindings[slot] = b
		}
	}

	return out
}

func matches(header string, words []string) bool {
	h := strings.ToLower(header)
	for _, w := range words {
		if strings.Contains(h, w) {
			return true
		}
	}
	return false
}
