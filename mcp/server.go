// Package mcp exposes the simulation engine as Model Context Protocol
// tools.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/types"
)

// Catalog is the rule source the server runs against.
type Catalog interface {
	rules.Source
	All() []types.Rule
}

type Server struct {
	engine      *engine.Engine
	catalog     Catalog
	cfg         types.Config
	constraints []types.Constraint
	mcp         *sdk.Server
}

// NewServer registers the simulation tools. cfg is the base run config;
// constraints are applied to every run before the caller's own.
func NewServer(eng *engine.Engine, catalog Catalog, cfg types.Config, constraints []types.Constraint, version string) *Server {
	s := &Server{
		engine:      eng,
		catalog:     catalog,
		cfg:         cfg,
		constraints: constraints,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "simcore",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
