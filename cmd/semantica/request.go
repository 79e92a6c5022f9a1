package main

import (
	"slices"
	"strconv"
)

// request is one validated root command invocation.
type request struct {
	search    bool
	query     string
	removals  []int // descending, without duplicates
	additions []addition
}

type addition struct {
	label string
	value int32
}

// parseRequest validates the root command's flags. Positions in removals
// refer to the index as loaded, so they are applied from the highest down.
func parseRequest(searchSet bool, query string, removes, adds []string) (request, error) {
	if searchSet && (len(removes) > 0 || len(adds) > 0) {
		return request{}, usagef("--search cannot be combined with --remove or --add")
	}
	req := request{search: searchSet, query: query}

	for _, s := range removes {
		id, err := strconv.Atoi(s)
		if err != nil || id < 0 {
			return request{}, usagef("invalid ID %q: must be a non-negative integer", s)
		}
		req.removals = append(req.removals, id)
	}
	slices.Sort(req.removals)
	req.removals = slices.Compact(req.removals)
	slices.Reverse(req.removals)

	if len(adds)%2 != 0 {
		return request{}, usagef("--add takes NAME VALUE pairs, got %d arguments", len(adds))
	}
	for i := 0; i < len(adds); i += 2 {
		v, err := strconv.ParseInt(adds[i+1], 10, 32)
		if err != nil {
			return request{}, usagef("invalid value %q for %q: must be a 32-bit integer", adds[i+1], adds[i])
		}
		req.additions = append(req.additions, addition{label: adds[i], value: int32(v)})
	}
	return req, nil
}
