// ABOUTME: MCP tool implementations for tracker tables.
// ABOUTME: Provides save, update, read, lookup, and export operations.
package mcp

import (
	"context"
	"fmt"

	"github.com/harperreed/trackle/internal/models"
	"github.com/harperreed/trackle/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// save_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_data",
		Description: "Save a day's record to a table (health, activities, consumption), updating it if one exists",
	}, s.handleSaveData)

	// update_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_data",
		Description: "Replace a day's record in a table; fields not given are removed",
	}, s.handleUpdateData)

	// get_record
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_record",
		Description: "Get the record for one date from a table",
	}, s.handleGetRecord)

	// get_table_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_table_data",
		Description: "List every record in a table, oldest first unless sorted by another field",
	}, s.handleGetTableData)

	// lookup
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lookup",
		Description: "Find records whose indexed field equals a value (health: bmi, weight, water)",
	}, s.handleLookup)

	// export_data
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_data",
		Description: "Export all tables as json, yaml, or markdown",
	}, s.handleExportData)
}

// Tool input/output types

type writeInput struct {
	Table  string         `json:"table" jsonschema:"Table name: health, activities, or consumption"`
	Date   string         `json:"date,omitempty" jsonschema:"Record date as YYYY-MM-DD, defaults to today"`
	Fields map[string]any `json:"fields" jsonschema:"Field values for the day, e.g. {\"bmi\": 22.5}"`
}

type recordOutput struct {
	Table   string        `json:"table"`
	Record  models.Record `json:"record"`
	Message string        `json:"message"`
}

type getRecordInput struct {
	Table string `json:"table" jsonschema:"Table name"`
	Date  string `json:"date,omitempty" jsonschema:"Record date as YYYY-MM-DD, defaults to today"`
}

type getRecordOutput struct {
	Found  bool          `json:"found"`
	Record models.Record `json:"record,omitempty"`
}

type tableDataInput struct {
	Table string `json:"table" jsonschema:"Table name"`
	Sort  string `json:"sort,omitempty" jsonschema:"Field to sort by, defaults to date"`
	Limit int    `json:"limit,omitempty" jsonschema:"Return only the last N records after sorting"`
}

type tableDataOutput struct {
	Table   string          `json:"table"`
	Count   int             `json:"count"`
	Records []models.Record `json:"records"`
}

type lookupInput struct {
	Table string `json:"table" jsonschema:"Table name"`
	Index string `json:"index" jsonschema:"Index name"`
	Value any    `json:"value" jsonschema:"Value to match"`
}

type exportInput struct {
	Format string `json:"format,omitempty" jsonschema:"json (default), yaml, or markdown"`
}

type exportOutput struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Tool handlers

func (i writeInput) record() (models.Record, error) {
	if !models.IsValidTable(i.Table) {
		return nil, fmt.Errorf("unknown table: %s", i.Table)
	}
	date := i.Date
	if date == "" {
		date = models.Today()
	}
	rec := models.NewRecord(date)
	for k, v := range i.Fields {
		if k == models.DateKey {
			continue
		}
		rec[k] = v
	}
	return rec, rec.Validate()
}

func (s *Server) handleSaveData(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, recordOutput, error) {
	rec, err := input.record()
	if err != nil {
		return nil, recordOutput{}, err
	}
	if err := s.repo.SaveData(ctx, rec, input.Table); err != nil {
		s.logger.Warn("save_data failed", "table", input.Table, "date", rec.Date(), "err", err)
		return nil, recordOutput{}, fmt.Errorf("failed to save record: %w", err)
	}
	return nil, recordOutput{
		Table:   input.Table,
		Record:  rec,
		Message: fmt.Sprintf("Saved %s for %s", input.Table, rec.Date()),
	}, nil
}

func (s *Server) handleUpdateData(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, recordOutput, error) {
	rec, err := input.record()
	if err != nil {
		return nil, recordOutput{}, err
	}
	if err := s.repo.UpdateData(ctx, rec, input.Table); err != nil {
		s.logger.Warn("update_data failed", "table", input.Table, "date", rec.Date(), "err", err)
		return nil, recordOutput{}, fmt.Errorf("failed to update record: %w", err)
	}
	return nil, recordOutput{
		Table:   input.Table,
		Record:  rec,
		Message: fmt.Sprintf("Updated %s for %s", input.Table, rec.Date()),
	}, nil
}

func (s *Server) handleGetRecord(ctx context.Context, req *mcp.CallToolRequest, input getRecordInput) (*mcp.CallToolResult, getRecordOutput, error) {
	date := input.Date
	if date == "" {
		date = models.Today()
	}
	rec, found, err := s.repo.GetData(ctx, input.Table, date)
	if err != nil {
		return nil, getRecordOutput{}, fmt.Errorf("failed to get record: %w", err)
	}
	return nil, getRecordOutput{Found: found, Record: rec}, nil
}

func (s *Server) handleGetTableData(ctx context.Context, req *mcp.CallToolRequest, input tableDataInput) (*mcp.CallToolResult, tableDataOutput, error) {
	records, err := s.repo.GetTableData(ctx, input.Table)
	if err != nil {
		return nil, tableDataOutput{}, fmt.Errorf("failed to list records: %w", err)
	}
	if input.Sort != "" && input.Sort != models.DateKey {
		models.SortByField(records, input.Sort)
	}
	if input.Limit > 0 && len(records) > input.Limit {
		records = records[len(records)-input.Limit:]
	}
	return nil, tableDataOutput{Table: input.Table, Count: len(records), Records: records}, nil
}

func (s *Server) handleLookup(ctx context.Context, req *mcp.CallToolRequest, input lookupInput) (*mcp.CallToolResult, tableDataOutput, error) {
	records, err := s.repo.Lookup(ctx, input.Table, input.Index, input.Value)
	if err != nil {
		return nil, tableDataOutput{}, fmt.Errorf("failed to look up records: %w", err)
	}
	return nil, tableDataOutput{Table: input.Table, Count: len(records), Records: records}, nil
}

func (s *Server) handleExportData(ctx context.Context, req *mcp.CallToolRequest, input exportInput) (*mcp.CallToolResult, exportOutput, error) {
	format := input.Format
	if format == "" {
		format = "json"
	}

	var content string
	switch format {
	case "json":
		data, err := storage.ExportJSON(ctx, s.repo)
		if err != nil {
			return nil, exportOutput{}, fmt.Errorf("failed to export: %w", err)
		}
		content = string(data)
	case "yaml":
		data, err := storage.ExportYAML(ctx, s.repo)
		if err != nil {
			return nil, exportOutput{}, fmt.Errorf("failed to export: %w", err)
		}
		content = string(data)
	case "markdown":
		md, err := storage.ExportMarkdown(ctx, s.repo, "", "")
		if err != nil {
			return nil, exportOutput{}, fmt.Errorf("failed to export: %w", err)
		}
		content = md
	default:
		return nil, exportOutput{}, fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
	}
	return nil, exportOutput{Format: format, Content: content}, nil
}
