package gears

import (
	"fmt"

	"github.com/tgrall/gears-explorer/internal/errs"
)

// ModuleName is the short name Redis Gears registers under.
const ModuleName = "rg"

// Module is one row of MODULE LIST.
type Module struct {
	Name    string
	Version int64
}

// ModuleStatus says whether Redis Gears is loaded and at which version.
type ModuleStatus struct {
	Installed bool
	Version   int64
}

func (s ModuleStatus) String() string {
	if !s.Installed {
		return "(No gear)"
	}
	return fmt.Sprintf("(v%d)", s.Version)
}

// SemVer renders the packed module version (10203 => "1.2.3").
func (s ModuleStatus) SemVer() string {
	if !s.Installed {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", s.Version/10000, s.Version/100%100, s.Version%100)
}

// StatusOf picks Redis Gears out of a module list.
func StatusOf(modules []Module) ModuleStatus {
	for _, m := range modules {
		if m.Name == ModuleName {
			return ModuleStatus{Installed: true, Version: m.Version}
		}
	}
	return ModuleStatus{}
}

// ParseModules reads a MODULE LIST reply. RESP2 rows are flat tuples
// ["name", <name>, "ver", <version>, ...]; RESP3 rows are maps.
func ParseModules(reply interface{}) ([]Module, error) {
	rows, ok := reply.([]interface{})
	if !ok {
		return nil, errs.New("module list", errs.ErrParse, fmt.Errorf("reply is %T", reply))
	}
	modules := make([]Module, 0, len(rows))
	for i, row := range rows {
		var name, ver interface{}
		switch r := row.(type) {
		case []interface{}:
			if len(r) < 4 {
				return nil, errs.New("module list", errs.ErrParse, fmt.Errorf("row %d has %d fields", i, len(r)))
			}
			name, ver = r[1], r[3]
		case map[interface{}]interface{}:
			name, ver = r["name"], r["ver"]
		default:
			return nil, errs.New("module list", errs.ErrParse, fmt.Errorf("row %d is %T", i, row))
		}
		v, err := asInt64(ver)
		if err != nil {
			return nil, errs.New("module list", errs.ErrParse, fmt.Errorf("row %d version: %w", i, err))
		}
		modules = append(modules, Module{Name: asString(name), Version: v})
	}
	return modules, nil
}
