package router

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultAPIVersion prefixes every mounted group
const DefaultAPIVersion = "v1"

// Route describes one mounted endpoint
type Route struct {
	Method string
	Path   string
	// Table is the source table of a change-notification route, empty otherwise
	Table string
}

// Group is a set of routes sharing a prefix and middleware
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []groupRoute
}

type groupRoute struct {
	Route
	handler gin.HandlerFunc
}

// NewGroup creates a route group under prefix
func NewGroup(prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{prefix: prefix, middleware: middleware}
}

// Handle adds a route to the group
func (g *Group) Handle(method, relativePath string, h gin.HandlerFunc) *Group {
	g.routes = append(g.routes, groupRoute{
		Route:   Route{Method: method, Path: relativePath},
		handler: h,
	})
	return g
}

// Hook adds the change-notification endpoint of a source table. The path is
// the table name with underscores turned into dashes, so treasury_operations
// is served at <prefix>/treasury-operations.
func (g *Group) Hook(table string, h gin.HandlerFunc) *Group {
	g.routes = append(g.routes, groupRoute{
		Route:   Route{Method: http.MethodPost, Path: HookPath(table), Table: table},
		handler: h,
	})
	return g
}

// HookPath returns the relative path a table's notifications are posted to
func HookPath(table string) string {
	return "/" + strings.ReplaceAll(strings.ToLower(table), "_", "-")
}

// Mount registers groups under /api/<version> and returns the mounted routes
// with their full paths. Two routes with the same method and path are an
// error; gin would panic on them.
func Mount(engine *gin.Engine, version string, groups ...*Group) ([]Route, error) {
	if version == "" {
		version = DefaultAPIVersion
	}
	api := engine.Group("/api/" + version)

	seen := make(map[string]struct{})
	var mounted []Route
	for _, g := range groups {
		for _, r := range g.routes {
			full := path.Join(api.BasePath(), g.prefix, r.Path)
			key := r.Method + " " + full
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("duplicate route %s", key)
			}
			seen[key] = struct{}{}
			mounted = append(mounted, Route{Method: r.Method, Path: full, Table: r.Table})
		}
	}

	for _, g := range groups {
		rg := api.Group(g.prefix, g.middleware...)
		for _, r := range g.routes {
			rg.Handle(r.Method, r.Path, r.handler)
		}
	}
	return mounted, nil
}
