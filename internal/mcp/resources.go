// ABOUTME: MCP resource implementations for tracker tables.
// ABOUTME: Provides trackle://tables and trackle://today resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/trackle/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	tablesURI = "trackle://tables"
	todayURI  = "trackle://today"
)

func (s *Server) registerResources() {
	// trackle://tables - every record of every table
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         tablesURI,
		Name:        "All Tracker Tables",
		Description: "Every record in the health, activities, and consumption tables",
		MIMEType:    "application/json",
	}, s.handleTablesResource)

	// trackle://today - today's record from each table
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         todayURI,
		Name:        "Today's Tracker Data",
		Description: "Today's record from each table, or null where nothing was logged",
		MIMEType:    "application/json",
	}, s.handleTodayResource)
}

// Resource handlers

func (s *Server) handleTablesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	tables, err := s.repo.GetAllTableData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	return jsonResource(tablesURI, tables)
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	today := models.Today()

	records := make(map[string]models.Record, len(models.AllTables))
	logged := 0
	for _, table := range models.AllTables {
		rec, found, err := s.repo.GetData(ctx, table, today)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}
		records[table] = rec
		if found {
			logged++
		}
	}

	return jsonResource(todayURI, map[string]interface{}{
		"date":    today,
		"records": records,
		"logged":  logged,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
