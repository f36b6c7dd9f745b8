package nscache

import (
	"bufio"
	"context"
	"sort"
	"strings"
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Stats is a point-in-time snapshot of the keys under one prefix.
// Keys are logical (unprefixed) and sorted.
type Stats struct {
	Status    Status            `json:"status"`
	Prefix    string            `json:"prefix"`
	TotalKeys int               `json:"total_keys"`
	Keys      []string          `json:"keys"`
	Info      map[string]string `json:"info,omitempty"`
	Message   string            `json:"message,omitempty"`
}

func (cc *cache) Stats(ctx context.Context) Stats {
	st := Stats{Prefix: cc.ns.Prefix(), Keys: []string{}}
	if !cc.ready("stats") {
		st.Status = StatusUnavailable
		st.Message = "cache is not available"
		return st
	}

	actx, cancel := context.WithTimeout(ctx, cc.adminTimeout)
	defer cancel()

	physical, err := cc.provider.Keys(actx, cc.ns.All())
	if err != nil {
		cc.fail("stats", "", err)
		st.Status = StatusError
		st.Message = err.Error()
		return st
	}
	if len(physical) > 0 {
		st.Keys = cc.ns.LogicalAll(physical)
		sort.Strings(st.Keys)
	}
	st.TotalKeys = len(st.Keys)
	st.Status = StatusAvailable

	// INFO is diagnostic only; some servers restrict it.
	if info, err := cc.provider.Info(actx, "stats"); err == nil {
		st.Info = parseInfo(info)
	} else {
		cc.debugf("cache info unavailable", Fields{"err": err})
	}
	return st
}

// parseInfo reads the "field:value" lines of an INFO reply, skipping section
// headers and blanks.
func parseInfo(s string) map[string]string {
	out := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
