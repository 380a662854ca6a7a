// Package pkgbuild reads package metadata out of a fetched PKGBUILD without
// running it. Only top-level variable assignments are understood; function
// bodies and command substitutions are skipped. A committed .SRCINFO is
// preferred when one sits next to the PKGBUILD.
package pkgbuild

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentpkg/relic/pkg/abs"
)

var (
	assignRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\+?)=(.*)$`)
	funcRegex   = regexp.MustCompile(`^(function\s+)?[A-Za-z_][A-Za-z0-9_-]*\s*\(\)`)
	varRefRegex = regexp.MustCompile(`^(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)
)

type Package interface {
	// Name returns the first pkgname (e.g. linux)
	Name() string
	// Names returns every pkgname; split packages declare more than one
	Names() []string
	// Version returns [epoch:]pkgver-pkgrel (e.g. 5.4.15.arch1-1)
	Version() string
	// Base returns pkgbase, or "" when unset
	Base() string
	// Desc returns pkgdesc (e.g. The Linux kernel and modules)
	Desc() string
	Arch() []string
	URL() string
	Licenses() []string
	Groups() []string
	Provides() []string
	Depends() []string
	OptionalDepends() []string
	MakeDepends() []string
	CheckDepends() []string
	Conflicts() []string
	Replaces() []string
	// Dir returns the directory the PKGBUILD was loaded from
	Dir() string
	// Validate reports every missing or malformed required field
	Validate() error
}

// Load reads the package metadata in dir: its .SRCINFO if there is one,
// otherwise the PKGBUILD. dir must hold a PKGBUILD either way.
func Load(dir string) (Package, error) {
	path := filepath.Join(dir, abs.RecipeFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file in %q: %w", abs.RecipeFile, dir, err)
	}

	var p *pkgbuild
	if info, readErr := os.ReadFile(filepath.Join(dir, SrcinfoFile)); readErr == nil {
		p, err = parseSrcinfo(info)
	} else if errors.Is(readErr, fs.ErrNotExist) {
		p, err = parse(data)
	} else {
		return nil, fmt.Errorf("reading %s: %w", SrcinfoFile, readErr)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	p.dir = dir
	return p, nil
}

// Parse reads the assignments of a PKGBUILD held in memory.
func Parse(data []byte) (Package, error) {
	return parse(data)
}

type pkgbuild struct {
	scalars map[string]string
	arrays  map[string][]string
	dir     string
}

func newPkgbuild() *pkgbuild {
	return &pkgbuild{
		scalars: map[string]string{},
		arrays:  map[string][]string{},
	}
}

func parse(data []byte) (*pkgbuild, error) {
	p := newPkgbuild()

	lines := strings.Split(string(data), "\n")
	depth := 0
	awaitBrace := false

	for n := 0; n < len(lines); n++ {
		line := strings.TrimSpace(lines[n])

		if depth > 0 || awaitBrace {
			if awaitBrace && strings.Contains(line, "{") {
				awaitBrace = false
			}
			depth += braces(line)
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if funcRegex.MatchString(line) {
			depth = braces(line)
			awaitBrace = !strings.Contains(line, "{")
			continue
		}

		m := assignRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, appendTo, value := m[1], m[2] == "+", m[3]

		isArray := strings.HasPrefix(value, "(")
		if isArray {
			value = value[1:]
		}

		// Keep pulling lines until quotes balance and, for arrays, the
		// closing paren shows up.
		start := n
		var words []string
		for {
			var done, ok bool
			words, done, ok = splitWords(value, p.lookup)
			if ok && (done || !isArray) {
				break
			}
			if n+1 >= len(lines) {
				return nil, fmt.Errorf("line %d: unterminated value for %s", start+1, name)
			}
			n++
			value += "\n" + lines[n]
		}

		switch {
		case isArray && appendTo:
			p.arrays[name] = append(p.arrays[name], words...)
		case isArray:
			p.arrays[name] = words
		case len(words) > 0:
			p.scalars[name] = words[0]
		default:
			p.scalars[name] = ""
		}
	}

	return p, nil
}

// lookup resolves $name against earlier assignments. Arrays expand to their
// first element, as in bash.
func (p *pkgbuild) lookup(name string) (string, bool) {
	if v, ok := p.scalars[name]; ok {
		return v, true
	}
	if v, ok := p.arrays[name]; ok {
		if len(v) == 0 {
			return "", true
		}
		return v[0], true
	}
	return "", false
}

// splitWords splits s into shell words, honoring quotes, backslashes and
// comments, and stops at the first unquoted ')'. done reports whether that
// paren was reached; ok is false when a quote is left open.
func splitWords(s string, lookup func(string) (string, bool)) (words []string, done, ok bool) {
	var cur strings.Builder
	inWord := false
	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		case c == '#' && !inWord:
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == ')':
			flush()
			return words, true, true
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return words, false, false
			}
			cur.WriteString(s[i+1 : i+1+end])
			i += end + 1
			inWord = true
		case c == '"':
			closed := false
			for i++; i < len(s); i++ {
				c := s[i]
				if c == '"' {
					closed = true
					break
				}
				if c == '\\' && i+1 < len(s) && strings.IndexByte("$`\"\\", s[i+1]) >= 0 {
					cur.WriteByte(s[i+1])
					i++
					continue
				}
				if c == '$' {
					i = expandAt(s, i, &cur, lookup)
					continue
				}
				cur.WriteByte(c)
			}
			if !closed {
				return words, false, false
			}
			inWord = true
		case c == '\\':
			if i+1 < len(s) {
				cur.WriteByte(s[i+1])
				i++
			}
			inWord = true
		case c == '$':
			i = expandAt(s, i, &cur, lookup)
			inWord = true
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}

	flush()
	return words, false, true
}

// expandAt writes the expansion of the variable reference starting at s[i]
// ('$') to cur and returns the index of the last byte consumed. Unknown
// variables and forms other than $name and ${name} are kept verbatim.
func expandAt(s string, i int, cur *strings.Builder, lookup func(string) (string, bool)) int {
	m := varRefRegex.FindStringSubmatchIndex(s[i+1:])
	if m == nil {
		cur.WriteByte('$')
		return i
	}

	var name string
	if m[2] >= 0 {
		name = s[i+1+m[2] : i+1+m[3]]
	} else {
		name = s[i+1+m[4] : i+1+m[5]]
	}

	if v, ok := lookup(name); ok {
		cur.WriteString(v)
	} else {
		cur.WriteString(s[i : i+1+m[1]])
	}
	return i + m[1]
}

func braces(line string) int {
	return strings.Count(line, "{") - strings.Count(line, "}")
}

func (p *pkgbuild) Name() string {
	names := p.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (p *pkgbuild) Names() []string {
	if v, ok := p.arrays["pkgname"]; ok {
		return v
	}
	if v, ok := p.scalars["pkgname"]; ok && v != "" {
		return []string{v}
	}
	return nil
}

func (p *pkgbuild) Version() string {
	ver := p.scalars["pkgver"]
	if epoch := p.scalars["epoch"]; epoch != "" && epoch != "0" {
		ver = epoch + ":" + ver
	}
	if rel := p.scalars["pkgrel"]; rel != "" {
		ver += "-" + rel
	}
	return ver
}

func (p *pkgbuild) Base() string              { return p.scalars["pkgbase"] }
func (p *pkgbuild) Desc() string              { return p.scalars["pkgdesc"] }
func (p *pkgbuild) Arch() []string            { return p.arrays["arch"] }
func (p *pkgbuild) URL() string               { return p.scalars["url"] }
func (p *pkgbuild) Licenses() []string        { return p.arrays["license"] }
func (p *pkgbuild) Groups() []string          { return p.arrays["groups"] }
func (p *pkgbuild) Provides() []string        { return p.arrays["provides"] }
func (p *pkgbuild) Depends() []string         { return p.arrays["depends"] }
func (p *pkgbuild) OptionalDepends() []string { return p.arrays["optdepends"] }
func (p *pkgbuild) MakeDepends() []string     { return p.arrays["makedepends"] }
func (p *pkgbuild) CheckDepends() []string    { return p.arrays["checkdepends"] }
func (p *pkgbuild) Conflicts() []string       { return p.arrays["conflicts"] }
func (p *pkgbuild) Replaces() []string        { return p.arrays["replaces"] }
func (p *pkgbuild) Dir() string               { return p.dir }

func (p *pkgbuild) Validate() error {
	var err error

	names := p.Names()
	if len(names) == 0 {
		err = errors.Join(err, fmt.Errorf("pkgname must be provided"))
	}
	for _, name := range names {
		if nameErr := abs.ValidatePackageName(name); nameErr != nil {
			err = errors.Join(err, nameErr)
		}
	}

	if p.scalars["pkgver"] == "" {
		err = errors.Join(err, fmt.Errorf("pkgver must be provided"))
	} else if strings.ContainsAny(p.scalars["pkgver"], ":-/ ") {
		err = errors.Join(err, fmt.Errorf("pkgver must not contain colons, hyphens, slashes or whitespace"))
	}

	if p.scalars["pkgrel"] == "" {
		err = errors.Join(err, fmt.Errorf("pkgrel must be provided"))
	}

	if len(p.Arch()) == 0 {
		err = errors.Join(err, fmt.Errorf("arch must be provided"))
	}

	return err
}
