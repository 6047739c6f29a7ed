package duration

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSeconds is the upper bound of a Duration (7 days). The bound itself is accepted.
const MaxSeconds = 7 * 24 * 60 * 60

var (
	ErrUnparseable = errors.New("unparseable duration")
	ErrOutOfRange  = errors.New("duration out of range")

	compoundRegex = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)
	unitSeconds   = [...]int64{86400, 3600, 60, 1}
)

// Error is returned by Parse. Reason is meant to be shown to the user as is.
type Error struct {
	Input  string
	Reason string
	err    error
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.err
}

type Duration struct {
	Seconds  int64
	Original string
}

func (d Duration) Std() time.Duration {
	return time.Duration(d.Seconds) * time.Second
}

func (d Duration) String() string {
	return d.Original
}

// Parse accepts either a plain integer amount of seconds or a compact form like 1d2h3m4s.
func Parse(text string) (Duration, error) {
	input := strings.TrimSpace(text)
	seconds, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if strings.HasPrefix(input, "-") {
				return Duration{}, negative(text)
			}
			return Duration{}, tooFar(text)
		}
		seconds, err = parseCompound(text, input)
		if err != nil {
			return Duration{}, err
		}
	}
	if seconds < 0 {
		return Duration{}, negative(text)
	}
	if seconds > MaxSeconds {
		return Duration{}, tooFar(text)
	}
	return Duration{Seconds: seconds, Original: text}, nil
}

func parseCompound(text string, input string) (int64, error) {
	match := compoundRegex.FindStringSubmatch(input)
	if match == nil || match[0] == "" {
		return 0, &Error{Input: text, Reason: "Failed to parse time.", err: ErrUnparseable}
	}
	var total int64
	for i, group := range match[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.ParseInt(group, 10, 64)
		if err != nil || n > MaxSeconds { // a single component this large can only overshoot the bound
			return 0, tooFar(text)
		}
		total += n * unitSeconds[i]
	}
	return total, nil
}

func negative(text string) error {
	return &Error{Input: text, Reason: "I don't do negative time.", err: ErrOutOfRange}
}

func tooFar(text string) error {
	return &Error{Input: text, Reason: "That's a bit too far in the future for me.", err: ErrOutOfRange}
}
