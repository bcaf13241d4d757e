package logging

import (
	"fmt"
	"os"
	"strings"
)

// NG911_LOGLEVEL holds comma-separated "tag=level" directives, e.g.
// "sip=debug,dtls=trace". A directive with no "tag=" sets the default level
// for tags that aren't otherwise listed.
const envVar = "NG911_LOGLEVEL"

var (
	defaultLevel = Info
	tagLevels    []struct {
		tag   string
		level Level
	}
)

func init() {
	for _, d := range strings.Split(os.Getenv(envVar), ",") {
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := parseLevel(v[len(v)-1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid %s directive %q: %s\n", envVar, d, err)
			continue
		}
		if len(v) == 1 {
			defaultLevel = level
		} else {
			tagLevels = append(tagLevels, struct {
				tag   string
				level Level
			}{v[0], level})
		}
	}

	DefaultLogger.Level = defaultLevel
}

func determineLevel(tag string, fallback Level) Level {
	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level
		}
	}
	return fallback
}
