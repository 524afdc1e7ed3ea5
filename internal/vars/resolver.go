package vars

import (
	"regexp"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"
)

var (
	simplePlaceholder = regexp.MustCompile(`\$\{\s*([^{}\s]+)\s*\}`)
	pipePlaceholder   = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
)

// ResolveSimple replaces ${name} placeholders with values from vars. Unknown
// names are left as they are.
func ResolveSimple(text string, vars map[string]string) string {
	return simplePlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		name := simplePlaceholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Resolver resolves {{name|pipe:args}} placeholders against flattened
// document variables.
type Resolver struct {
	vars  map[string]any
	keys  []string
	pipes *Pipes
	log   *zap.Logger
}

// NewResolver flattens vars and prepares a resolver. A nil pipes registry
// gets the built-in pipes with English number formatting.
func NewResolver(vars map[string]any, pipes *Pipes, log *zap.Logger) *Resolver {
	if pipes == nil {
		pipes = NewPipes("en")
	}
	if log == nil {
		log = zap.NewNop()
	}
	flat := Flatten(vars)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Sort(natural.StringSlice(keys))
	return &Resolver{vars: flat, keys: keys, pipes: pipes, log: log}
}

// Keys returns all variable names in natural order.
func (r *Resolver) Keys() []string {
	return r.keys
}

// Lookup returns the raw value of a flattened variable.
func (r *Resolver) Lookup(name string) (any, bool) {
	v, ok := r.vars[name]
	return v, ok
}

// Resolve replaces every {{...}} placeholder in text. It never fails:
// unknown names keep the placeholder and unknown pipes keep the raw value,
// both are logged.
func (r *Resolver) Resolve(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return pipePlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		return r.expand(m, pipePlaceholder.FindStringSubmatch(m)[1])
	})
}

func (r *Resolver) expand(placeholder, body string) string {
	segments := strings.Split(body, "|")
	name := strings.TrimSpace(segments[0])

	value, ok := r.vars[name]
	if !ok {
		fields := []zap.Field{zap.String("variable", name)}
		if s := r.Suggest(name); s != "" {
			fields = append(fields, zap.String("did_you_mean", s))
		}
		r.log.Error("Unresolved template variable", fields...)
		return placeholder
	}

	for _, segment := range segments[1:] {
		pipeName, argStr, _ := strings.Cut(strings.TrimSpace(segment), ":")
		pipeName = strings.TrimSpace(pipeName)
		pipe, ok := r.pipes.Get(pipeName)
		if !ok {
			r.log.Error("Unknown pipe", zap.String("pipe", pipeName), zap.String("variable", name))
			return Stringify(value)
		}
		out, err := pipe(value, strings.Fields(argStr))
		if err != nil {
			r.log.Error("Pipe failed", zap.String("pipe", pipeName), zap.String("variable", name), zap.Error(err))
			return Stringify(value)
		}
		value = out
	}
	return Stringify(value)
}

// Suggest returns the known variable name closest to name by edit distance,
// or "" when there are no variables.
func (r *Resolver) Suggest(name string) string {
	best, bestDist := "", -1
	for _, k := range r.keys {
		d := smetrics.WagnerFischer(name, k, 1, 1, 2)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
