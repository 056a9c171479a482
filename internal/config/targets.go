package config

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// Engines converts the browser matrix into esbuild engine targets.
func (c Config) Engines() ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(c.Browsers))
	for _, b := range c.Browsers {
		e, err := parseEngine(b)
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}

func parseEngine(s string) (api.Engine, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexAny(s, "0123456789")
	if i <= 0 {
		return api.Engine{}, fmt.Errorf("invalid browser target %q: expected name followed by version", s)
	}
	name, ok := engineNames[s[:i]]
	if !ok {
		return api.Engine{}, fmt.Errorf("invalid browser target %q: unknown browser %q", s, s[:i])
	}
	return api.Engine{Name: name, Version: s[i:]}, nil
}
