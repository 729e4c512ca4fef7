package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/pkg/snippet"
)

// fullTextThreshold is the query length at which search leaves the trie
// and switches to the store's substring path. Short fragments are what
// tries are for; longer strings behave like free-text queries.
const fullTextThreshold = 3

// Server handles the IPC for snippet completions.
type Server struct {
	engine *Engine
	reader *bufio.Reader
	writer io.Writer
}

// NewServer creates a completion server over stdin/stdout.
func NewServer(engine *Engine) *Server {
	return &Server{
		engine: engine,
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
	}
}

// Start begins listening for IPC requests. It blocks until stdin closes
// or the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting server.")

	s.sendResponse(StatusResponse{Success: true, Status: "ready"})

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			log.Errorf("Reading from stdin: %v", err)
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.handleRequest(ctx, line)
	}
}

// handleRequest processes an incoming request string.
func (s *Server) handleRequest(ctx context.Context, requestStr string) {
	var request Request
	if err := json.Unmarshal([]byte(requestStr), &request); err != nil {
		s.sendError("Invalid JSON request", 400)
		log.Errorf("Unmarshaling request: %v", err)
		return
	}

	switch request.Action {
	case "search":
		s.handleSearch(ctx, request)
	case "snippets":
		s.handleSnippets(ctx, request)
	case "usage":
		s.handleUsage(ctx, request)
	case "create":
		s.handleCreate(ctx, request)
	case "update":
		s.handleUpdate(ctx, request)
	case "delete":
		s.handleDelete(ctx, request)
	case "stats":
		s.handleStats(ctx, request)
	case "user_stats":
		s.handleUserStats(ctx, request)
	case "analytics":
		s.handleAnalytics(ctx, request)
	case "categories":
		s.handleCategories(ctx, request)
	case "health":
		s.sendResponse(StatusResponse{Success: true, Status: "ok"})
	default:
		s.sendError(fmt.Sprintf("Unknown action: %s", request.Action), 400)
	}
}

// handleSearch routes a query to the trie, the fuzzy matcher, or the
// store's full-text path based on query length and the fuzzy flag.
func (s *Server) handleSearch(ctx context.Context, request Request) {
	query := request.Query
	if query == "" {
		s.sendError("Missing 'query' parameter", 400)
		log.Debug("Query is empty in request")
		return
	}

	var (
		results []snippet.Snippet
		meta    Meta
		err     error
	)
	if !request.Fuzzy && utf8.RuneCountInString(query) > fullTextThreshold {
		results, meta, err = s.engine.FullTextSearch(ctx, query, request.Language, request.Limit)
	} else {
		results, meta, err = s.engine.PrefixSearch(query, request.Language, request.Limit, request.Fuzzy)
	}
	if err != nil {
		if errors.Is(err, ErrEmptyPrefix) || errors.Is(err, ErrPrefixTooLong) {
			s.sendError(err.Error(), 400)
		} else {
			s.sendError("Search failed", 500)
			log.Errorf("Search %q: %v", query, err)
		}
		return
	}
	if results == nil {
		results = []snippet.Snippet{}
	}

	s.sendResponse(SearchResponse{Success: true, Results: results, Meta: meta})
}

func (s *Server) handleSnippets(ctx context.Context, request Request) {
	results, personalized, err := s.engine.Snippets(ctx, request.UserID, request.Language, request.Limit)
	if err != nil {
		s.sendError("Fetching snippets failed", 500)
		log.Errorf("Fetching snippets for user %q: %v", request.UserID, err)
		return
	}
	if results == nil {
		results = []snippet.Snippet{}
	}
	s.sendResponse(SnippetsResponse{
		Success:      true,
		Snippets:     results,
		Count:        len(results),
		Personalized: personalized,
	})
}

func (s *Server) handleUsage(ctx context.Context, request Request) {
	if request.Metric == nil {
		s.sendError("Missing 'metric' parameter", 400)
		return
	}
	metric := *request.Metric
	if err := metric.Validate(); err != nil {
		s.sendError(err.Error(), 400)
		return
	}
	if err := s.engine.RecordUsage(ctx, metric); err != nil {
		s.sendError("Recording usage failed", 500)
		log.Errorf("Recording usage for snippet %d: %v", metric.SnippetID, err)
		return
	}
	s.sendResponse(StatusResponse{Success: true, Status: "recorded"})
}

func (s *Server) handleCreate(ctx context.Context, request Request) {
	if request.Snippet == nil {
		s.sendError("Missing 'snippet' parameter", 400)
		return
	}
	created, err := s.engine.CreateSnippet(ctx, *request.Snippet)
	if err != nil {
		s.sendError("Creating snippet failed", 500)
		log.Errorf("Creating snippet %q: %v", request.Snippet.Prefix, err)
		return
	}
	s.sendResponse(SnippetResponse{Success: true, Snippet: &created})
}

func (s *Server) handleUpdate(ctx context.Context, request Request) {
	if request.Snippet == nil {
		s.sendError("Missing 'snippet' parameter", 400)
		return
	}
	ok, err := s.engine.UpdateSnippet(ctx, *request.Snippet)
	if err != nil {
		s.sendError("Updating snippet failed", 500)
		log.Errorf("Updating snippet %d: %v", request.Snippet.ID, err)
		return
	}
	if !ok {
		s.sendError("Snippet not found", 404)
		return
	}
	s.sendResponse(SnippetResponse{Success: true, Snippet: request.Snippet})
}

func (s *Server) handleDelete(ctx context.Context, request Request) {
	if request.SnippetID == 0 {
		s.sendError("Missing 'snippet_id' parameter", 400)
		return
	}
	ok, err := s.engine.DeleteSnippet(ctx, request.SnippetID)
	if err != nil {
		s.sendError("Deleting snippet failed", 500)
		log.Errorf("Deleting snippet %d: %v", request.SnippetID, err)
		return
	}
	if !ok {
		s.sendError("Snippet not found", 404)
		return
	}
	s.sendResponse(StatusResponse{Success: true, Status: "deleted"})
}

func (s *Server) handleStats(ctx context.Context, request Request) {
	stats, stored, err := s.engine.Stats(ctx)
	if err != nil {
		s.sendError("Fetching stats failed", 500)
		log.Errorf("Fetching stats: %v", err)
		return
	}
	s.sendResponse(StatsResponse{
		Success:          true,
		NodeCount:        stats.NodeCount,
		SnippetCount:     stats.SnippetCount,
		StoredSnippets:   stored,
		AvgTerminalDepth: stats.AvgTerminalDepth,
	})
}

func (s *Server) handleUserStats(ctx context.Context, request Request) {
	if request.UserID == "" {
		s.sendError("Missing 'user_id' parameter", 400)
		return
	}
	stats, err := s.engine.UserStats(ctx, request.UserID)
	if err != nil {
		s.sendError("Fetching user stats failed", 500)
		log.Errorf("Fetching stats for user %q: %v", request.UserID, err)
		return
	}
	s.sendResponse(struct {
		Success bool `json:"success"`
		snippet.UserStats
	}{Success: true, UserStats: stats})
}

func (s *Server) handleAnalytics(ctx context.Context, request Request) {
	if request.SnippetID == 0 {
		s.sendError("Missing 'snippet_id' parameter", 400)
		return
	}
	analytics, err := s.engine.SnippetAnalytics(ctx, request.SnippetID)
	if err != nil {
		s.sendError("Fetching analytics failed", 500)
		log.Errorf("Fetching analytics for snippet %d: %v", request.SnippetID, err)
		return
	}
	s.sendResponse(struct {
		Success bool `json:"success"`
		snippet.Analytics
	}{Success: true, Analytics: analytics})
}

func (s *Server) handleCategories(ctx context.Context, request Request) {
	categories, err := s.engine.Categories(ctx)
	if err != nil {
		s.sendError("Fetching categories failed", 500)
		log.Errorf("Fetching categories: %v", err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	s.sendResponse(struct {
		Success    bool     `json:"success"`
		Categories []string `json:"categories"`
	}{Success: true, Categories: categories})
}

// sendResponse marshals the given response into JSON and writes it to the
// client, followed by a newline.
func (s *Server) sendResponse(response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Errorf("Marshaling response: %v", err)
		s.sendError("Internal server error", 500)
		return
	}
	fmt.Fprintln(s.writer, string(data))
}

// sendError sends an error response.
func (s *Server) sendError(message string, code int) {
	s.sendResponse(ErrorResponse{Error: message, Status: code})
}
