// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Kalendar tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kalendar/internal/calendar"
	"github.com/starford/kalendar/internal/eventservice"
	"github.com/starford/kalendar/internal/models"
)

// RecurrenceRulesURI is the resource holding RecurrenceContract.
const RecurrenceRulesURI = "kalendar://recurrence-rules"

// Server wraps the MCP server with Kalendar tools.
type Server struct {
	mcp *server.MCPServer
	svc *eventservice.Service
}

// New creates a new MCP server with all Kalendar tools registered.
func New(svc *eventservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Kalendar",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List all events in the calendar, optionally filtered by a case-insensitive substring of title or description."),
		mcp.WithString("query", mcp.Description("Optional filter")),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("search_events",
		mcp.WithDescription("Search event titles and descriptions (case-insensitive substring)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchEvents)

	s.mcp.AddTool(mcp.NewTool("create_event",
		mcp.WithDescription("Create an event. Two events may not share the exact same date string. "+
			"Read the recurrence rules first via the get_recurrence_contract tool or the "+
			RecurrenceRulesURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Start as YYYY-MM-DDTHH:MM in the calendar time zone")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("color", mcp.Description("Optional hex color, e.g. #ff8800")),
		mcp.WithString("recurrence", mcp.Description("Recurrence type"),
			mcp.Enum(models.KindNone, models.KindDaily, models.KindWeekly, models.KindMonthly, models.KindCustom)),
		mcp.WithArray("days_of_week", mcp.Description("Weekly only: weekdays 0=Sunday..6=Saturday"), mcp.WithNumberItems()),
		mcp.WithNumber("interval", mcp.Description("Custom only: repeat every N weeks (default 2)"), mcp.Min(1)),
	), s.createEvent)

	s.mcp.AddTool(mcp.NewTool("move_event",
		mcp.WithDescription("Move an event to another day, keeping its time of day and recurrence."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
		mcp.WithString("date", mcp.Required(), mcp.Description("Target day as YYYY-MM-DD")),
	), s.moveEvent)

	s.mcp.AddTool(mcp.NewTool("delete_event",
		mcp.WithDescription("Delete an event by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	), s.deleteEvent)

	s.mcp.AddTool(mcp.NewTool("month_view",
		mcp.WithDescription("List every day of a month on which events occur, with recurring events expanded."),
		mcp.WithNumber("year", mcp.Description("Year (defaults to the current month)")),
		mcp.WithNumber("month", mcp.Description("Month 1-12 (defaults to the current month)"), mcp.Min(1), mcp.Max(12)),
		mcp.WithString("query", mcp.Description("Optional filter")),
	), s.monthView)

	s.mcp.AddTool(mcp.NewTool("get_recurrence_contract",
		mcp.WithDescription("Returns the rules that decide on which days a recurring event occurs. "+
			"Call this before creating events with a recurrence."),
	), s.getRecurrenceContract)

	// Resource: recurrence rules.
	s.mcp.AddResource(
		mcp.NewResource(RecurrenceRulesURI, "Recurrence Rules",
			mcp.WithResourceDescription("How each recurrence type maps to calendar days."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecurrenceRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.List(ctx, req.GetString("query", ""))), nil
}

func (s *Server) searchEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	events := s.svc.List(ctx, query)
	if len(events) == 0 {
		return mcp.NewToolResultText("no events found"), nil
	}
	return jsonResult(events), nil
}

func (s *Server) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rule, err := recurrenceArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ev, err := s.svc.Create(ctx, eventservice.Input{
		Title:       title,
		Description: req.GetString("description", ""),
		Date:        date,
		Color:       req.GetString("color", ""),
		Recurrence:  rule,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ev), nil
}

// recurrenceArg builds the rule from the recurrence, days_of_week and
// interval arguments.
func recurrenceArg(req mcp.CallToolRequest) (models.Recurrence, error) {
	switch kind := req.GetString("recurrence", models.KindNone); kind {
	case models.KindNone, "":
		return models.None{}, nil
	case models.KindDaily:
		return models.Daily{}, nil
	case models.KindMonthly:
		return models.Monthly{}, nil
	case models.KindWeekly:
		var days []time.Weekday
		for _, d := range req.GetIntSlice("days_of_week", nil) {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("days_of_week: %d out of range 0-6", d)
			}
			days = append(days, time.Weekday(d))
		}
		return models.Weekly{Days: days}, nil
	case models.KindCustom:
		return models.Custom{Interval: req.GetInt("interval", models.DefaultCustomInterval)}, nil
	default:
		return nil, fmt.Errorf("unknown recurrence %q", kind)
	}
}

func (s *Server) moveEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.svc.Move(ctx, id, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ev), nil
}

func (s *Server) deleteEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete %s: %v", id, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) monthView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.svc.CurrentMonth()
	if req.GetInt("year", 0) != 0 || req.GetInt("month", 0) != 0 {
		var err error
		m, err = calendar.NewMonth(req.GetInt("year", m.Year), req.GetInt("month", int(m.Month)))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	grid := s.svc.Month(ctx, m, req.GetString("query", ""))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", grid.Title)
	for _, week := range grid.Weeks {
		for _, d := range week {
			if !d.InMonth || len(d.Events) == 0 {
				continue
			}
			titles := make([]string, len(d.Events))
			for i, ev := range d.Events {
				titles[i] = fmt.Sprintf("%s [%s]", ev.Title, ev.ID)
			}
			fmt.Fprintf(&b, "%s: %s\n", d.Date, strings.Join(titles, "; "))
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) getRecurrenceContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecurrenceContract), nil
}

func (s *Server) readRecurrenceRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecurrenceRulesURI,
			MIMEType: "text/markdown",
			Text:     RecurrenceContract,
		},
	}, nil
}
