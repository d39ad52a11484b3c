package efun

import (
	"time"

	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/value"
)

var timeSchedEfuns = map[string]efunFunc{
	"time":           efunTime,
	"localtime":      efunLocaltime,
	"call_out":       efunCallOut,
	"set_heart_beat": efunSetHeartBeat,
	"set_reset":      efunSetReset,
}

func efunTime(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	return value.NewInt(nowTime().Unix()), nil
}

// localtime(t) returns ({sec, min, hour, mday, mon, year, wday, yday}),
// mon and wday zero-based, matching the classic LPMud layout.
func efunLocaltime(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	var t time.Time
	if len(args) >= 1 && args[0].Kind() == value.Int {
		t = time.Unix(args[0].Int(), 0)
	} else {
		t = nowTime()
	}
	lt := t.Local()
	return value.NewArray([]value.Value{
		value.NewInt(int64(lt.Second())),
		value.NewInt(int64(lt.Minute())),
		value.NewInt(int64(lt.Hour())),
		value.NewInt(int64(lt.Day())),
		value.NewInt(int64(lt.Month() - 1)),
		value.NewInt(int64(lt.Year())),
		value.NewInt(int64(lt.Weekday())),
		value.NewInt(int64(lt.YearDay() - 1)),
	}), nil
}

func efunCallOut(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.String || r.scheduler == nil {
		return value.NilValue, nil
	}
	delay := args[1].Int()
	r.scheduler.CallOut(act.Object, args[0].Str(), delay, args[2:])
	return value.NewInt(1), nil
}

func efunSetHeartBeat(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || r.scheduler == nil {
		return value.NilValue, nil
	}
	r.scheduler.SetHeartBeat(act.Object, args[0].Truthy())
	return value.NewInt(1), nil
}

func efunSetReset(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || r.scheduler == nil {
		return value.NilValue, nil
	}
	r.scheduler.SetReset(act.Object, time.Duration(args[0].Int())*time.Second)
	return value.NewInt(1), nil
}
