// Package mcp provides a Model Context Protocol server for chatnote.
//
// It exposes the message archive (search, trigger scanning, saved notes and
// events) as MCP tools, and archive statistics as an MCP resource. The CLI
// serves it over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/chatnote/internal/aggregate"
	"github.com/hurttlocker/chatnote/internal/chat"
	"github.com/hurttlocker/chatnote/internal/notes"
	"github.com/hurttlocker/chatnote/internal/store"
	"github.com/hurttlocker/chatnote/internal/transcript"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store    store.Store
	Version  string               // version string for MCP server info
	Trigger  notes.Trigger        // default phrase and radius for chat_triggers
	Renderer *transcript.Renderer // nil = default reaction patterns
	Location *time.Location       // timestamps in results; nil = local
}

// dbMu serializes all MCP tool calls that touch the database.
// mcp-go dispatches handlers concurrently and SQLite has a single writer.
var dbMu sync.Mutex

const maxLimit = 50

// NewServer creates a configured MCP server with all chatnote tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.Trigger.Phrase == "" {
		cfg.Trigger = notes.DefaultTrigger()
	}
	renderer := transcript.Renderer{Reactions: transcript.DefaultReactions}
	if cfg.Renderer != nil {
		renderer = *cfg.Renderer
	}

	s := server.NewMCPServer(
		"chatnote",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerSearchTool(s, cfg.Store, cfg.Location)
	registerTriggersTool(s, cfg.Store, cfg.Trigger, renderer)
	registerNotesTool(s, cfg.Store, renderer)
	registerEventsTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)

	return s
}

// --- Tools ---

type searchHit struct {
	Position int     `json:"position"`
	Sender   string  `json:"sender"`
	Time     string  `json:"time"`
	Content  string  `json:"content"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

func registerSearchTool(s *server.MCPServer, st store.Store, loc *time.Location) {
	tool := mcp.NewTool("chat_search",
		mcp.WithDescription("Full-text search over archived chat messages. Diacritics are ignored, every term must match. Returns messages with their position in the conversation."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search terms"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil || query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		limit := clampLimit(req.GetFloat("limit", 10))

		results, err := st.SearchMessages(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		hits := make([]searchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, searchHit{
				Position: r.Position,
				Sender:   r.Message.SenderName,
				Time:     chat.FormatTimestamp(r.Message.TimestampMS, loc),
				Content:  r.Message.Text(),
				Snippet:  r.Snippet,
				Score:    r.Score,
			})
		}
		data, _ := json.MarshalIndent(hits, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

type renderedNote struct {
	Ordinal      int    `json:"ordinal"`
	TriggerIndex int    `json:"trigger_index"`
	Trigger      string `json:"trigger,omitempty"`
	Transcript   string `json:"transcript"`
}

func registerTriggersTool(s *server.MCPServer, st store.Store, def notes.Trigger, r transcript.Renderer) {
	tool := mcp.NewTool("chat_triggers",
		mcp.WithDescription("Scan the archived conversation for a trigger phrase and return the surrounding context of each occurrence as a rendered transcript."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("phrase",
			mcp.Description(fmt.Sprintf("Trigger phrase, matched case-insensitively (default: %q)", def.Phrase)),
		),
		mcp.WithNumber("radius",
			mcp.Description(fmt.Sprintf("Messages of context on each side (default: %d)", def.Radius)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of notes (default: 10, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		trigger := notes.Trigger{
			Phrase: req.GetString("phrase", def.Phrase),
			Radius: int(req.GetFloat("radius", float64(def.Radius))),
		}
		limit := clampLimit(req.GetFloat("limit", 10))

		messages, err := st.AllMessages(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading messages: %v", err)), nil
		}

		found := notes.Scan(messages, trigger)
		out := make([]renderedNote, 0, min(len(found), limit))
		for i, n := range found {
			if i >= limit {
				break
			}
			t := r.Render(i+1, n)
			rn := renderedNote{Ordinal: t.Ordinal, TriggerIndex: t.TriggerIndex, Transcript: t.String()}
			if msg, ok := n.Trigger(trigger.Radius); ok {
				rn.Trigger = msg.SenderName + ": " + msg.Text()
			}
			out = append(out, rn)
		}

		data, _ := json.MarshalIndent(map[string]any{
			"phrase": trigger.Phrase,
			"radius": trigger.Radius,
			"total":  len(found),
			"notes":  out,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerNotesTool(s *server.MCPServer, st store.Store, r transcript.Renderer) {
	tool := mcp.NewTool("chat_notes",
		mcp.WithDescription("List the notes saved by the last indexed scan, rendered as transcripts, in ordinal order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stored, err := st.ListNotes(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing notes: %v", err)), nil
		}
		out := make([]renderedNote, 0, len(stored))
		for _, sn := range stored {
			t := r.Render(sn.Ordinal, sn.Note)
			out = append(out, renderedNote{Ordinal: t.Ordinal, TriggerIndex: t.TriggerIndex, Transcript: t.String()})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerEventsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chat_events",
		mcp.WithDescription("List the places and events extracted from saved notes, keyed by note ordinal."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		events, err := st.ListEvents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing events: %v", err)), nil
		}
		if events == nil {
			events = []aggregate.EventRecord{}
		}
		data, _ := json.MarshalIndent(events, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("chat_stats",
		mcp.WithDescription("Archive statistics: message, sender, import, note and event counts and the covered time range."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		data, err := statsJSON(ctx, st)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"chatnote://stats",
		"Archive Statistics",
		mcp.WithResourceDescription("Counts of archived messages, senders, import runs, notes and events."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		data, err := statsJSON(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// --- Helpers ---

func statsJSON(ctx context.Context, st store.Store) ([]byte, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(map[string]any{
		"messages":    stats.MessageCount,
		"senders":     stats.SenderCount,
		"import_runs": stats.ImportRuns,
		"notes":       stats.NoteCount,
		"events":      stats.EventCount,
		"first_ms":    stats.FirstMS,
		"last_ms":     stats.LastMS,
		"db_bytes":    stats.DBSizeBytes,
	}, "", "  ")
}

func clampLimit(v float64) int {
	limit := int(v)
	if limit <= 0 {
		return 10
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
