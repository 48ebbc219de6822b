package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Backups are stored as <slot>_<utc timestamp>[-<seq>].<ext>, e.g.
// Slot_00000002.save_2024-03-01_10-30-00.bak or ..._10-30-00-1.zip.
const (
	TimeLayout = "2006-01-02_15-04-05"

	ExtRaw        = ".bak"
	ExtCompressed = ".zip"

	// TempPrefix marks in-progress writes; such files are never catalogued.
	TempPrefix = ".tmp-"

	// MaxSeq bounds the same-second suffix.
	MaxSeq = 99
)

var namePattern = regexp.MustCompile(`^(.+)_(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})(?:-(\d{1,2}))?(\.bak|\.zip)$`)

// FormatName builds the file name of a backup.
func FormatName(slot string, created time.Time, seq int, compressed bool) string {
	var b strings.Builder
	b.WriteString(slot)
	b.WriteByte('_')
	b.WriteString(created.UTC().Format(TimeLayout))
	if seq > 0 {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(seq))
	}
	if compressed {
		b.WriteString(ExtCompressed)
	} else {
		b.WriteString(ExtRaw)
	}
	return b.String()
}

// ParsedName is what a backup file name encodes.
type ParsedName struct {
	Slot       string
	Created    time.Time
	Seq        int
	Compressed bool
}

// ParseName decodes a name produced by FormatName. Timestamps are UTC so a
// DST change never reorders a slot's history.
func ParseName(name string) (ParsedName, error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return ParsedName{}, fmt.Errorf("%q is not a backup name", name)
	}

	ts, err := time.ParseInLocation(TimeLayout, m[2], time.UTC)
	if err != nil {
		return ParsedName{}, fmt.Errorf("parsing timestamp of %q: %w", name, err)
	}

	seq := 0
	if m[3] != "" {
		seq, _ = strconv.Atoi(m[3])
		if seq == 0 {
			return ParsedName{}, fmt.Errorf("%q has a zero suffix", name)
		}
	}

	return ParsedName{
		Slot:       m[1],
		Created:    ts,
		Seq:        seq,
		Compressed: m[4] == ExtCompressed,
	}, nil
}

// IsTemp reports whether name is an unfinished write.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}
