// Package cmdline normalizes user command lines into a canonical
// configuration map. The same command spelled differently ("--lr=0.1"
// vs "--lr 0.1") must resolve to the same configuration, because the
// configuration participates in the trial identity hash. The parser also
// keeps a re-format template so a branch can overlay new values and
// rebuild a runnable command line.
package cmdline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Parser builds a canonical configuration from a raw command line and
// remembers the argument layout for re-formatting.
type Parser struct {
	template  []string // literal tokens and "{name}" placeholders
	config    map[string][]string
	order     []string
	preparsed bool
}

// New creates an empty parser.
func New() *Parser {
	return &Parser{config: make(map[string][]string)}
}

// Parse consumes a command line and returns the canonical configuration.
// Flags become named entries (booleans get "true"), positional arguments
// become "_pos_N" entries. Paths that exist are made absolute so that the
// identity hash does not depend on the invocation directory.
//
// Calling Parse again overlays a branch command line onto the remembered
// template; introducing new positional arguments at that point is an
// error.
func (p *Parser) Parse(commandline []string) (map[string]string, error) {
	if len(commandline) == 0 {
		return map[string]string{}, nil
	}

	var expanded []string
	for _, arg := range commandline {
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			expanded = append(expanded, parts[0], parts[1])
		} else {
			expanded = append(expanded, arg)
		}
	}

	positional := p.positionalCount()
	current := ""
	for _, arg := range expanded {
		if _, err := os.Stat(arg); err == nil && strings.ContainsAny(arg, "/.") {
			if abs, err := filepath.Abs(arg); err == nil {
				arg = abs
			}
		}

		switch {
		case strings.HasPrefix(arg, "-") && arg != "-":
			current = strings.TrimLeft(arg, "-")
			if _, seen := p.config[current]; !seen {
				p.order = append(p.order, current)
				p.template = append(p.template, arg)
			}
			p.config[current] = nil
		case current != "":
			if len(p.config[current]) == 0 && !p.hasPlaceholder(current) {
				p.template = append(p.template, "{"+current+"}")
			}
			p.config[current] = append(p.config[current], arg)
		default:
			if p.preparsed {
				return nil, fmt.Errorf("cannot branch using positional arguments")
			}
			key := fmt.Sprintf("_pos_%d", positional)
			positional++
			p.config[key] = []string{arg}
			p.order = append(p.order, key)
			p.template = append(p.template, "{"+key+"}")
		}
	}

	p.preparsed = true
	return p.Configuration(), nil
}

// Configuration returns the canonical flat view: multi-valued flags are
// space-joined, bare flags read "true".
func (p *Parser) Configuration() map[string]string {
	config := make(map[string]string, len(p.config))
	for name, values := range p.config {
		if len(values) == 0 {
			config[name] = "true"
		} else {
			config[name] = strings.Join(values, " ")
		}
	}
	return config
}

// Format rebuilds a runnable command line from the template, with config
// overriding the parsed values. Unknown config keys are appended as new
// flags so a branch can add arguments the parent never had.
func (p *Parser) Format(config map[string]string) []string {
	merged := p.Configuration()
	var added []string
	for name, value := range config {
		if _, known := merged[name]; !known {
			added = append(added, name)
		}
		merged[name] = value
	}

	var out []string
	for _, token := range p.template {
		if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
			name := token[1 : len(token)-1]
			value := merged[name]
			if value == "true" && len(p.config[name]) == 0 {
				continue // bare flag, literal token already emitted
			}
			out = append(out, strings.Fields(value)...)
			continue
		}
		out = append(out, token)
	}

	// Deterministic order for appended flags.
	sort.Strings(added)
	for _, name := range added {
		out = append(out, "--"+name)
		if v := merged[name]; v != "true" {
			out = append(out, strings.Fields(v)...)
		}
	}
	return out
}

func (p *Parser) hasPlaceholder(name string) bool {
	want := "{" + name + "}"
	for _, token := range p.template {
		if token == want {
			return true
		}
	}
	return false
}

func (p *Parser) positionalCount() int {
	n := 0
	for name := range p.config {
		if strings.HasPrefix(name, "_pos_") {
			n++
		}
	}
	return n
}
