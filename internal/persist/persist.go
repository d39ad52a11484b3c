// Package persist implements the plain-text save_object/restore_object
// format from spec §6. This is the object persistence contract scripts
// rely on; it is distinct from internal/worldstore's auxiliary sqlite
// operational state.
package persist

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/value"
)

// IOError reports a save/restore file failure.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Save writes one line per declared variable of obj to path: "<name>
// <encoded-value>", per spec §6's encoding.
func Save(obj *object.Object, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Op: "save", Err: err}
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	bp := obj.Blueprint()
	slots := obj.Slots()
	for i, v := range bp.Vars {
		if _, err := fmt.Fprintf(w, "%s %s\n", v.Name, value.Render(slots[i])); err != nil {
			return &IOError{Path: path, Op: "save", Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		return &IOError{Path: path, Op: "save", Err: err}
	}
	return nil
}

// Resolver looks up an object by id during restore, for re-resolving
// object_ref fields; it returns nil if the id no longer resolves.
type Resolver interface {
	FindObject(id string) *object.Object
}

// Restore reads path, ignores unknown variable names, fills missing
// variables with their typed zero, and overwrites obj's current slots.
// A missing or unreadable file is returned as an IOError; the efun layer
// turns any error into restore_object's failure value.
func Restore(obj *object.Object, path string, resolver Resolver) error {
	f, err := os.Open(path)
	if err != nil {
		return &IOError{Path: path, Op: "restore", Err: err}
	}
	defer f.Close()

	bp := obj.Blueprint()
	byName := make(map[string]int, len(bp.Vars))
	for i, v := range bp.Vars {
		byName[v.Name] = i
	}

	slots := make([]value.Value, len(bp.Vars))
	for i, v := range bp.Vars {
		slots[i] = value.ZeroFor(string(v.Type))
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		name, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		idx, known := byName[name]
		if !known {
			continue
		}
		v, err := decode(rest, resolver)
		if err != nil {
			return &IOError{Path: path, Op: "restore", Err: err}
		}
		switch declType := string(bp.Vars[idx].Type); {
		case declType == "object" && v.Kind() == value.String:
			v = resolveObjectRef(v.Str(), resolver)
		case declType == "int" && v.Kind() == value.Nil:
			// decode("0") can't tell a saved nil from a saved int zero
			// apart (spec §6: both encode as "0"); for a declared int
			// slot the typed zero is Int(0), not Nil, so later script
			// arithmetic on the restored value doesn't hit a TypeError.
			v = value.NewInt(0)
		case declType == "string" && v.Kind() == value.Nil:
			// same ambiguity, but a string slot's typed zero ("") would
			// have been saved as a quoted empty string, not a bare "0",
			// so a bare "0" here can only be an explicit nil assignment.
			// Leave it as Nil.
		}
		slots[idx] = v
	}
	if err := sc.Err(); err != nil {
		return &IOError{Path: path, Op: "restore", Err: err}
	}

	for i, v := range slots {
		obj.SetSlot(i, v)
	}
	return nil
}

// resolveObjectRef re-resolves a saved object id on restore, per spec
// §6: "re-resolved on restore (nil if no longer resolvable)".
func resolveObjectRef(id string, resolver Resolver) value.Value {
	if resolver == nil {
		return value.NilValue
	}
	obj := resolver.FindObject(id)
	if obj == nil {
		return value.NilValue
	}
	return value.NewObject(object.RefFor(obj))
}

// decode parses one encoded value per spec §6: int decimal, quoted
// string with escapes, ({ ... }) array, ([ k:v, ... ]) mapping, or "0"
// for nil. An object_ref is stored as a quoted id, so decode returns it
// as a string; Restore re-resolves it via resolver for object-typed
// slots (nil if it no longer resolves).
func decode(s string, resolver Resolver) (value.Value, error) {
	s = strings.TrimSpace(s)
	d := &decoder{s: s, resolver: resolver}
	v, rest, err := d.parseValue(s)
	if err != nil {
		return value.NilValue, err
	}
	_ = rest
	return v, nil
}

type decoder struct {
	s        string
	resolver Resolver
}

func (d *decoder) parseValue(s string) (value.Value, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return value.NilValue, s, fmt.Errorf("empty encoded value")
	}
	switch {
	case s == "0":
		return value.NilValue, s[1:], nil
	case s[0] == '"':
		return d.parseQuoted(s)
	case strings.HasPrefix(s, "({"):
		return d.parseArray(s)
	case strings.HasPrefix(s, "(["):
		return d.parseMapping(s)
	case s[0] == '-' || (s[0] >= '0' && s[0] <= '9'):
		return d.parseInt(s)
	default:
		return value.NilValue, s, fmt.Errorf("unrecognized encoded value: %q", s)
	}
}

func (d *decoder) parseInt(s string) (value.Value, string, error) {
	i := 0
	if s[0] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return value.NilValue, s, err
	}
	return value.NewInt(n), s[i:], nil
}

// parseQuoted decodes a double-quoted, escaped string. The save-file
// format cannot distinguish a plain string from an object_ref at this
// layer; Restore re-interprets the result for object-typed slots based
// on the declared variable type.
func (d *decoder) parseQuoted(s string) (value.Value, string, error) {
	var sb strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '"' {
			i++
			return value.NewString(sb.String()), s[i:], nil
		}
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return value.NilValue, s, fmt.Errorf("unterminated quoted value")
}

func (d *decoder) parseArray(s string) (value.Value, string, error) {
	s = strings.TrimPrefix(s, "({")
	s = strings.TrimSpace(s)
	var elems []value.Value
	for {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "})") {
			s = strings.TrimPrefix(s, "})")
			return value.NewArray(elems), s, nil
		}
		v, rest, err := d.parseValue(s)
		if err != nil {
			return value.NilValue, s, err
		}
		elems = append(elems, v)
		s = strings.TrimSpace(rest)
		s = strings.TrimPrefix(s, ",")
	}
}

func (d *decoder) parseMapping(s string) (value.Value, string, error) {
	s = strings.TrimPrefix(s, "([")
	s = strings.TrimSpace(s)
	m := value.NewMapping()
	for {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "])") {
			s = strings.TrimPrefix(s, "])")
			return m, s, nil
		}
		k, rest, err := d.parseValue(s)
		if err != nil {
			return value.NilValue, s, err
		}
		rest = strings.TrimSpace(rest)
		rest = strings.TrimPrefix(rest, ":")
		v, rest2, err := d.parseValue(rest)
		if err != nil {
			return value.NilValue, s, err
		}
		m.MappingSet(k, v)
		s = strings.TrimSpace(rest2)
		s = strings.TrimPrefix(s, ",")
	}
}
