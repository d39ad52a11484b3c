package efun

import (
	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/value"
)

var collectionEfuns = map[string]efunFunc{
	"keys":      efunKeys,
	"m_indices": efunKeys,
	"m_delete":  efunMDelete,
	"sizeof":    efunSizeof,
}

func efunKeys(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.Mapping {
		return value.NewArray(nil), nil
	}
	return value.NewArray(args[0].MappingKeys()), nil
}

func efunMDelete(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.Mapping {
		return value.NilValue, nil
	}
	if err := args[0].MappingDelete(args[1]); err != nil {
		return value.NilValue, err
	}
	return value.NilValue, nil
}

// sizeof(nil) == 0, sizeof("") == 0, sizeof(({})) == 0, sizeof(([])) ==
// 0, per spec §8.
func efunSizeof(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 {
		return value.NewInt(0), nil
	}
	v := args[0]
	if v.Kind() == value.String {
		return value.NewInt(int64(len(v.Str()))), nil
	}
	return value.NewInt(int64(v.Len())), nil
}
