package registry

import "strconv"

// Resolve finds the record addressed by target. A numeric target is matched
// against ids first; when that fails the target is matched exactly against
// names. The first match in list order wins.
func Resolve(records []Record, target string) (Record, bool) {
	if id, err := strconv.Atoi(target); err == nil {
		for _, r := range records {
			if r.ID == id {
				return r, true
			}
		}
	}
	for _, r := range records {
		if r.Name == target {
			return r, true
		}
	}
	return Record{}, false
}
