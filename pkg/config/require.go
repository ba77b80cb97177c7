package config

import "fmt"

type Missing []string

func (m Missing) Error() string {
	return fmt.Sprintf("missing required env %v", []string(m))
}

// Require collects the names of empty values; nil when all are set.
func Require(pairs ...string) error {
	var missing Missing
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			missing = append(missing, pairs[i+1])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}
