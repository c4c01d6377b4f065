package agent

import (
	"fmt"
	"strings"
)

// Capabilities is a table of directive builders. Each entry turns a brief
// into one instruction for the mission text; a nil entry contributes nothing.
// Specialised tables start from BaseCapabilities and replace single entries.
type Capabilities struct {
	Name       string
	Fixtures   func(Brief) string
	Assertions func(Brief) string
	Isolation  func(Brief) string
	EdgeCases  func(Brief) string
}

// Directives renders the table for b in a fixed order.
func (c Capabilities) Directives(b Brief) []string {
	var out []string
	for _, fn := range []func(Brief) string{c.Fixtures, c.Assertions, c.Isolation, c.EdgeCases} {
		if fn == nil {
			continue
		}
		if d := strings.TrimSpace(fn(b)); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// BaseCapabilities applies to any Go unit.
func BaseCapabilities() Capabilities {
	return Capabilities{
		Name: "base",
		Fixtures: func(b Brief) string {
			return fmt.Sprintf("Build fresh fixtures for %s in SetupTest; tests must not share mutable state.", orUnit(b.SourceType))
		},
		Assertions: func(Brief) string {
			return "Use s.Require() for preconditions and s.Equal/s.ErrorIs for outcomes; compare errors with errors.Is, never by message."
		},
		Isolation: func(Brief) string {
			return "Do not touch the network, the real clock or files outside s.T().TempDir()."
		},
		EdgeCases: func(b Brief) string {
			if b.Member == "" {
				return ""
			}
			return fmt.Sprintf("Cover the zero value and the error path of %s where its signature allows it.", b.Member)
		},
	}
}

// HTTPHandlerCapabilities applies to units built on net/http.
func HTTPHandlerCapabilities() Capabilities {
	c := BaseCapabilities()
	c.Name = "http-handler"
	c.Fixtures = func(b Brief) string {
		return fmt.Sprintf("Drive %s through httptest.NewRecorder or httptest.NewServer; never bind a fixed port.", orUnit(b.SourceType))
	}
	c.Assertions = func(Brief) string {
		return "Assert the status code, the Content-Type header and the decoded body separately."
	}
	return c
}

// ConcurrencyCapabilities applies to units that use goroutines and sync.
func ConcurrencyCapabilities() Capabilities {
	c := BaseCapabilities()
	c.Name = "concurrency"
	c.Isolation = func(Brief) string {
		return "Synchronise with channels or sync.WaitGroup, never time.Sleep; every started goroutine must finish before the test returns."
	}
	c.EdgeCases = func(b Brief) string {
		return fmt.Sprintf("Exercise %s from several goroutines at once so go test -race can observe it.", orUnit(b.Member))
	}
	return c
}

// StorageCapabilities applies to units that persist data.
func StorageCapabilities() Capabilities {
	c := BaseCapabilities()
	c.Name = "storage"
	c.Fixtures = func(b Brief) string {
		return fmt.Sprintf("Give %s its own store under s.T().TempDir() or an in-memory database per test.", orUnit(b.SourceType))
	}
	c.EdgeCases = func(b Brief) string {
		return "Cover missing records, duplicate keys and reopening the store after Close."
	}
	return c
}

// CapabilitiesFor picks the table matching a unit's imports. HTTP wins over
// storage, and storage over concurrency.
func CapabilitiesFor(imports []string) Capabilities {
	var http, storage, concurrent bool
	for _, imp := range imports {
		switch {
		case imp == "net/http" || strings.HasPrefix(imp, "net/http/"):
			http = true
		case imp == "database/sql" || imp == "io/fs" || imp == "os" ||
			strings.Contains(imp, "sqlite") || strings.Contains(imp, "kuzu") ||
			strings.Contains(imp, "redis") || strings.Contains(imp, "bbolt"):
			storage = true
		case imp == "sync" || imp == "sync/atomic" || imp == "golang.org/x/sync/errgroup":
			concurrent = true
		}
	}
	switch {
	case http:
		return HTTPHandlerCapabilities()
	case storage:
		return StorageCapabilities()
	case concurrent:
		return ConcurrencyCapabilities()
	}
	return BaseCapabilities()
}

func orUnit(name string) string {
	if name == "" {
		return "the unit"
	}
	return name
}
