package efun

import (
	"strconv"
	"strings"

	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/value"
)

var stringEfuns = map[string]efunFunc{
	"explode":        efunExplode,
	"implode":        efunImplode,
	"sprintf":        efunSprintf,
	"lower_case":     efunLowerCase,
	"capitalize":     efunCapitalize,
	"replace_string": efunReplaceString,
	"trim":           efunTrim,
	"strlen":         efunStrlen,
	"to_int":         efunToInt,
	"member":         efunMember,
}

// explode(s, sep) then implode(result, sep) is the identity when sep is
// non-empty and occurs only as a delimiter, per spec §8.
func efunExplode(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.String || args[1].Kind() != value.String {
		return value.NewArray(nil), nil
	}
	sep := args[1].Str()
	var parts []string
	if sep == "" {
		parts = []string{args[0].Str()}
	} else {
		parts = strings.Split(args[0].Str(), sep)
	}
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.NewString(p)
	}
	return value.NewArray(out), nil
}

func efunImplode(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.Array || args[1].Kind() != value.String {
		return value.NewString(""), nil
	}
	elems := args[0].Elems()
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = renderText(e)
	}
	return value.NewString(strings.Join(parts, args[1].Str())), nil
}

// efunSprintf implements a deliberately small subset of sprintf: %s
// (string, or the same plain-text encoding save_object uses for any
// other kind), %d (integer), and %% (literal percent). LPC format
// strings in the mudlib use only these three, matching spec §4.9.
func efunSprintf(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewString(""), nil
	}
	format := args[0].Str()
	rest := args[1:]
	var sb strings.Builder
	argi := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			sb.WriteByte(c)
			continue
		}
		switch format[i+1] {
		case '%':
			sb.WriteByte('%')
			i++
		case 's':
			if argi < len(rest) {
				sb.WriteString(renderText(rest[argi]))
				argi++
			}
			i++
		case 'd':
			if argi < len(rest) {
				sb.WriteString(strconv.FormatInt(rest[argi].Int(), 10))
				argi++
			}
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return value.NewString(sb.String()), nil
}

func efunLowerCase(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewString(""), nil
	}
	return value.NewString(strings.ToLower(args[0].Str())), nil
}

func efunCapitalize(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewString(""), nil
	}
	s := args[0].Str()
	if s == "" {
		return value.NewString(""), nil
	}
	return value.NewString(strings.ToUpper(s[:1]) + s[1:]), nil
}

func efunReplaceString(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return value.NewString(""), nil
	}
	return value.NewString(strings.ReplaceAll(args[0].Str(), args[1].Str(), args[2].Str())), nil
}

func efunTrim(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewString(""), nil
	}
	return value.NewString(strings.TrimSpace(args[0].Str())), nil
}

func efunStrlen(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	return value.NewInt(int64(len(args[0].Str()))), nil
}

func efunToInt(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NewInt(0), nil
	}
	if args[0].Kind() == value.Int {
		return args[0], nil
	}
	if args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	s := strings.TrimSpace(args[0].Str())
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return value.NewInt(0), nil
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return value.NewInt(0), nil
	}
	return value.NewInt(n), nil
}

// member(container, x) returns the index of x within an array, or
// whether x is a key of a mapping; -1 / 0 when absent.
func efunMember(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.NewInt(-1), nil
	}
	switch args[0].Kind() {
	case value.Array:
		for i, e := range args[0].Elems() {
			if e.Equal(args[1]) {
				return value.NewInt(int64(i)), nil
			}
		}
		return value.NewInt(-1), nil
	case value.Mapping:
		for _, k := range args[0].MappingKeys() {
			if k.Equal(args[1]) {
				return value.NewInt(1), nil
			}
		}
		return value.NewInt(0), nil
	default:
		return value.NewInt(-1), nil
	}
}
