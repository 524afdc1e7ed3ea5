package vars

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Pipe formats a variable value. args are the space separated words that
// followed the colon in the placeholder.
type Pipe func(value any, args []string) (string, error)

// ErrNotANumber is returned by the number pipe for non numeric input.
var ErrNotANumber = errors.New("value is not a number")

// Pipes is a registry of named pipes.
type Pipes struct {
	mu    sync.RWMutex
	pipes map[string]Pipe
}

// NewPipes returns a registry with the built-in pipes. Numbers are grouped
// according to locale (a BCP 47 tag); an unknown tag falls back to English.
func NewPipes(locale string) *Pipes {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := &Pipes{pipes: make(map[string]Pipe)}
	p.Register("number", numberPipe(message.NewPrinter(tag)))
	p.Register("date", datePipe)
	p.Register("default", func(v any, args []string) (string, error) {
		if s := Stringify(v); s != "" {
			return s, nil
		}
		return strings.Join(args, " "), nil
	})

	funcs := sprig.FuncMap()
	for _, name := range []string{"upper", "lower", "title", "trim"} {
		if fn, ok := funcs[name].(func(string) string); ok {
			p.Register(name, func(v any, _ []string) (string, error) {
				return fn(Stringify(v)), nil
			})
		}
	}
	return p
}

// Register adds or replaces a pipe.
func (p *Pipes) Register(name string, fn Pipe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pipes[name] = fn
}

// Get returns the pipe registered under name.
func (p *Pipes) Get(name string) (Pipe, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.pipes[name]
	return fn, ok
}

// Clone returns an independent copy of the registry.
func (p *Pipes) Clone() *Pipes {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := &Pipes{pipes: make(map[string]Pipe, len(p.pipes))}
	for k, v := range p.pipes {
		out.pipes[k] = v
	}
	return out
}

// NumberFormat is the parsed "minInt.minFrac-maxFrac" pipe argument.
type NumberFormat struct {
	MinInt  int
	MinFrac int
	MaxFrac int
}

// DefaultNumberFormat is used when the number pipe has no argument.
var DefaultNumberFormat = NumberFormat{MinInt: 1, MinFrac: 0, MaxFrac: 3}

// ParseNumberFormat parses "minInt.minFrac-maxFrac". Missing parts keep
// their defaults, so "1.2" and "3" are accepted too.
func ParseNumberFormat(spec string) (NumberFormat, error) {
	f := DefaultNumberFormat
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return f, nil
	}

	intPart, fracPart, hasFrac := strings.Cut(spec, ".")
	var err error
	if f.MinInt, err = strconv.Atoi(intPart); err != nil || f.MinInt < 0 {
		return f, fmt.Errorf("invalid number format %q", spec)
	}
	if !hasFrac {
		return f, nil
	}
	minFrac, maxFrac, hasMax := strings.Cut(fracPart, "-")
	if f.MinFrac, err = strconv.Atoi(minFrac); err != nil || f.MinFrac < 0 {
		return f, fmt.Errorf("invalid number format %q", spec)
	}
	if hasMax {
		if f.MaxFrac, err = strconv.Atoi(maxFrac); err != nil {
			return f, fmt.Errorf("invalid number format %q", spec)
		}
	}
	if f.MaxFrac < f.MinFrac {
		f.MaxFrac = f.MinFrac
	}
	return f, nil
}

func numberPipe(printer *message.Printer) Pipe {
	return func(v any, args []string) (string, error) {
		n, err := toFloat(v)
		if err != nil {
			return "", err
		}
		f, err := ParseNumberFormat(strings.Join(args, ""))
		if err != nil {
			return "", err
		}
		return printer.Sprintf("%v", number.Decimal(n,
			number.MinIntegerDigits(f.MinInt),
			number.MinFractionDigits(f.MinFrac),
			number.MaxFractionDigits(f.MaxFrac),
		)), nil
	}
}

func toFloat(v any) (float64, error) {
	switch tv := v.(type) {
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case int:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case json.Number:
		return tv.Float64()
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotANumber, tv)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrNotANumber, v)
}

// DefaultDatePattern is used when the date pipe has no argument.
const DefaultDatePattern = "dd/MM/yyyy"

func datePipe(v any, args []string) (string, error) {
	t, err := toTime(v)
	if err != nil {
		return "", err
	}
	pattern := strings.Join(args, " ")
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	return FormatDate(t, pattern), nil
}

// FormatDate substitutes the yyyy, MM, dd, HH, mm and ss tokens of pattern
// with the matching fields of t. Everything else is copied verbatim.
func FormatDate(t time.Time, pattern string) string {
	return strings.NewReplacer(
		"yyyy", fmt.Sprintf("%04d", t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"dd", fmt.Sprintf("%02d", t.Day()),
		"HH", fmt.Sprintf("%02d", t.Hour()),
		"mm", fmt.Sprintf("%02d", t.Minute()),
		"ss", fmt.Sprintf("%02d", t.Second()),
	).Replace(pattern)
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly}

func toTime(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(tv)); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse date %q", tv)
	}
	n, err := toFloat(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to use %v as a date", v)
	}
	return time.Unix(int64(n), 0).UTC(), nil
}
